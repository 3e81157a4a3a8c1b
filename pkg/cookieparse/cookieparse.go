// Package cookieparse parses raw Set-Cookie header text captured by the
// browser extension and identifies MarketInOut session cookies by their
// naming convention.
package cookieparse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ASPSessionPrefix is the naming convention for MarketInOut's primary
// session cookies. The match is case-sensitive: the platform emits the
// prefix in upper case and lower-cased lookalikes are not session cookies.
const ASPSessionPrefix = "ASPSESSIONID"

// Cookie is one parsed cookie with its optional attributes.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	MaxAge   int
	HasMax   bool
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// Result holds the outcome of parsing a combined Set-Cookie header.
// Malformed segments land in Errors; parsing never aborts on a bad cookie.
type Result struct {
	Cookies           []Cookie
	ASPSessionCookies []Cookie
	Errors            []string
}

// ParseSetCookieHeader splits a combined Set-Cookie header into
// individual cookies. Multiple cookies are separated by commas at
// attribute boundaries; commas inside Expires dates do not split
// because the text following them has no "=" before the next ";".
func ParseSetCookieHeader(raw string) Result {
	var result Result

	for _, segment := range splitCookies(raw) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		cookie, err := parseCookie(segment)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		result.Cookies = append(result.Cookies, cookie)
		if IsASPSessionCookie(cookie.Name) {
			result.ASPSessionCookies = append(result.ASPSessionCookies, cookie)
		}
	}

	return result
}

// splitCookies splits on commas that start a new cookie. A comma starts
// a new cookie when the text after it, up to the next ";" or ",", is a
// name=value pair.
func splitCookies(raw string) []string {
	var segments []string
	start := 0

	for i := 0; i < len(raw); i++ {
		if raw[i] != ',' {
			continue
		}
		if startsNewCookie(raw[i+1:]) {
			segments = append(segments, raw[start:i])
			start = i + 1
		}
	}
	segments = append(segments, raw[start:])

	return segments
}

func startsNewCookie(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '=':
			return i > 0
		case ';', ',', ' ':
			return false
		}
	}
	return false
}

func parseCookie(segment string) (Cookie, error) {
	parts := strings.Split(segment, ";")

	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Cookie{}, fmt.Errorf("cookieparse: malformed cookie segment %q", segment)
	}

	cookie := Cookie{Name: name, Value: strings.TrimSpace(value)}

	for _, attr := range parts[1:] {
		attrName, attrValue, _ := strings.Cut(strings.TrimSpace(attr), "=")
		attrValue = strings.TrimSpace(attrValue)

		switch strings.ToLower(strings.TrimSpace(attrName)) {
		case "domain":
			cookie.Domain = attrValue
		case "path":
			cookie.Path = attrValue
		case "expires":
			if ts, err := parseExpires(attrValue); err == nil {
				cookie.Expires = ts
			}
		case "max-age":
			if age, err := strconv.Atoi(attrValue); err == nil {
				cookie.MaxAge = age
				cookie.HasMax = true
			}
		case "httponly":
			cookie.HTTPOnly = true
		case "secure":
			cookie.Secure = true
		case "samesite":
			cookie.SameSite = attrValue
		}
	}

	return cookie, nil
}

// Expires formats seen in the wild: RFC 1123, RFC 850, and the
// dash-separated netscape variant.
var expiresFormats = []string{
	time.RFC1123,
	"Mon, 02-Jan-2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04:05 -0700",
	time.RFC850,
}

func parseExpires(value string) (time.Time, error) {
	for _, format := range expiresFormats {
		if ts, err := time.Parse(format, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cookieparse: unrecognized expires format %q", value)
}

// IsASPSessionCookie reports whether name follows the ASPSESSIONID*
// session-cookie naming convention. Case-sensitive.
func IsASPSessionCookie(name string) bool {
	return strings.HasPrefix(name, ASPSessionPrefix)
}

// ExtractASPSession filters a key/value bag down to only the
// session-identifying keys.
func ExtractASPSession(data map[string]string) map[string]string {
	extracted := make(map[string]string)
	for key, value := range data {
		if IsASPSessionCookie(key) {
			extracted[key] = value
		}
	}
	return extracted
}

// PrimaryASPSession selects the primary session cookie when several are
// present (the platform rotates session cookies mid-request at times).
// Tie-break rule: the cookie with the longest value wins, and among
// equal lengths the lexicographically first key wins, so the choice is
// deterministic regardless of map iteration order.
func PrimaryASPSession(candidates map[string]string) (key, value string, ok bool) {
	session := ExtractASPSession(candidates)
	if len(session) == 0 {
		return "", "", false
	}

	keys := make([]string, 0, len(session))
	for k := range session {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(session[keys[i]]) != len(session[keys[j]]) {
			return len(session[keys[i]]) > len(session[keys[j]])
		}
		return keys[i] < keys[j]
	})

	return keys[0], session[keys[0]], true
}
