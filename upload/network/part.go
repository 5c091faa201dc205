package network

import (
	"path"
	"path/filepath"
	"strings"
)

// UploadedPart describes a finalized video file, ready to be referenced by a submission.
type UploadedPart struct {
	Title    string `json:"title,omitempty"`
	Filename string `json:"filename"`
	Desc     string `json:"desc"`
}

func fileStem(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}
