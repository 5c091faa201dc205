package main

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-videoupload/upload/network"
)

const sessionDomain = "bilibili.com"

// parseSessionCookie parses a "name=value; name2=value2" cookie header value.
func parseSessionCookie(header string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	for _, entry := range strings.Split(header, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie entry: %s", entry)
		}
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: sessionDomain,
			Path:   "/",
		})
	}
	return cookies, nil
}

// newSessionClient returns the upload HTTP client with the session cookies
// loaded for every host under sessionDomain.
func newSessionClient(sessionCookie string) (*http.Client, error) {
	cookies, err := parseSessionCookie(sessionCookie)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(&url.URL{Scheme: "https", Host: sessionDomain, Path: "/"}, cookies)

	client := network.DefaultHTTPClient()
	client.Jar = jar
	return client, nil
}
