package cache

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Root is the top-level directory of every stored consulta.
const Root = "consultas"

// Request is one cacheable unit of work. For multi-parameter routes ParamName
// and ParamValue are the names and values joined with "_" in declaration
// order, while Params keeps the individual parameters sent upstream.
type Request struct {
	Route      string
	ParamName  string
	ParamValue string
	Params     url.Values
}

// SanitizeRoute strips the leading "/" and turns the remaining ones into "_".
func SanitizeRoute(route string) string {
	return strings.ReplaceAll(strings.TrimPrefix(route, "/"), "/", "_")
}

// SanitizeValue keeps [A-Za-z0-9] and replaces every other rune with "_".
func SanitizeValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RoutePrefix is the directory holding every object of route.
func RoutePrefix(route string) string {
	return Root + "/" + SanitizeRoute(route) + "/"
}

// DeriveJSONKey returns consultas/<route>/<name>_<value>_<ms>.json.
func DeriveJSONKey(route, paramName, paramValue string) string {
	return RoutePrefix(route) + baseName(paramName, paramValue) + ".json"
}

// DeriveMediaKey returns consultas/<route>/media/<name>_<value>_<ms>.<ext>.
func DeriveMediaKey(route, paramName, paramValue, ext string) string {
	return RoutePrefix(route) + "media/" + baseName(paramName, paramValue) + "." + strings.TrimPrefix(ext, ".")
}

func baseName(paramName, paramValue string) string {
	return paramName + "_" + SanitizeValue(paramValue) + "_" + strconv.FormatInt(stamp.next(), 10)
}

// stamp hands out strictly increasing millisecond timestamps so two writes in
// the same millisecond never share a key.
var stamp = &msClock{now: time.Now}

type msClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *msClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}
