package network

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// BackendKind names the storage protocol behind a line.
type BackendKind string

const (
	// Upos is the multipart protocol with explicit upload ids and part numbers.
	Upos BackendKind = "upos"
	// Kodo is the block protocol assembling the object from block contexts.
	Kodo BackendKind = "kodo"
)

// ParseBackendKind maps the "os" value of the line discovery response to a BackendKind.
func ParseBackendKind(s string) (BackendKind, error) {
	switch BackendKind(s) {
	case Upos, Kodo:
		return BackendKind(s), nil
	default:
		return "", fmt.Errorf("unknown backend: %s", s)
	}
}

// InfiniteCost is the cost of a line that was never probed successfully.
const InfiniteCost = time.Duration(math.MaxInt64)

// Line is an upload endpoint: a backend and the query identifying the CDN in front of it.
type Line struct {
	Backend  BackendKind
	ProbeURL string
	Query    string
	// Cost is the measured probe latency, InfiniteCost if unknown.
	Cost time.Duration
}

func (l Line) String() string {
	return fmt.Sprintf("%s[%s]", l.Backend, l.Query)
}

func newLine(backend BackendKind, probeURL, query string) Line {
	return Line{
		Backend:  backend,
		ProbeURL: probeURL,
		Query:    query,
		Cost:     InfiniteCost,
	}
}

// Bda2 is the upos line behind the bda2 CDN.
func Bda2() Line {
	return newLine(Upos, "//upos-sz-upcdnbda2.bilivideo.com/OK", "upcdn=bda2&probe_version=20211012")
}

// Ws is the upos line behind the ws CDN.
func Ws() Line {
	return newLine(Upos, "//upos-sz-upcdnws.bilivideo.com/OK", "upcdn=ws&probe_version=20211012")
}

// Qn is the upos line behind the qn CDN.
func Qn() Line {
	return newLine(Upos, "//upos-sz-upcdnqn.bilivideo.com/OK", "upcdn=qn&probe_version=20211012")
}

// KodoLine is the kodo line.
func KodoLine() Line {
	return newLine(Kodo, "//up-na0.qbox.me/crossdomain.xml", "bucket=bvcupcdnkodobm&probe_version=20211012")
}

// DefaultLine is used when no probed line answered.
func DefaultLine() Line {
	return Bda2()
}

// LineNames lists the names accepted by LineByName.
var LineNames = []string{"bda2", "ws", "qn", "kodo"}

// LineByName returns the pinned line with the given name.
func LineByName(name string) (Line, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bda2":
		return Bda2(), nil
	case "ws":
		return Ws(), nil
	case "qn":
		return Qn(), nil
	case "kodo":
		return KodoLine(), nil
	default:
		return Line{}, fmt.Errorf("unknown upload line: %s (available: %s)", name, strings.Join(LineNames, ", "))
	}
}
