package lbanalyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/itchyny/gojq"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultIPInfoURL is the ipinfo.io API endpoint.
const DefaultIPInfoURL = "https://ipinfo.io"

// maxResponseBytes bounds the body read from a lookup service.
const maxResponseBytes = 1 << 20

// HTTPClient is the subset of *http.Client used for lookups, so tests and
// callers can plug in their own transport.
type HTTPClient interface {
	Do(r *http.Request) (*http.Response, error)
}

// IPInfoFields holds one jq query per report column. Each query runs
// against the decoded JSON response; its first string or number result
// becomes the field value.
type IPInfoFields struct {
	Country  string `mapstructure:"country"`
	City     string `mapstructure:"city"`
	Hostname string `mapstructure:"hostname"`
	Org      string `mapstructure:"org"`
}

// DefaultIPInfoFields matches the ipinfo.io response. ipinfo.io only sends a
// country code, so the country query falls back to it when no name is given
// and the code is turned into an English name.
var DefaultIPInfoFields = IPInfoFields{
	Country:  ".country_name // .country",
	City:     ".city",
	Hostname: ".hostname",
	Org:      ".org",
}

const ipinfoErrorQuery = `.error | if type == "object" then (.message // .title) else . end`

// IPInfo looks addresses up in ipinfo.io or any service with a compatible
// GET /{addr}/json endpoint.
type IPInfo struct {
	token   string
	baseURL string
	client  HTTPClient

	country  *gojq.Code
	city     *gojq.Code
	hostname *gojq.Code
	org      *gojq.Code
	errMsg   *gojq.Code
}

// NewIPInfo returns an ipinfo client. An empty baseURL means
// DefaultIPInfoURL, empty field queries fall back to DefaultIPInfoFields, and
// a nil client means http.DefaultClient.
func NewIPInfo(token, baseURL string, fields IPInfoFields, client HTTPClient) (*IPInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if baseURL == "" {
		baseURL = DefaultIPInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := &IPInfo{
		token:   strings.TrimSpace(token),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
	queries := []struct {
		dst      **gojq.Code
		src, def string
	}{
		{&c.country, fields.Country, DefaultIPInfoFields.Country},
		{&c.city, fields.City, DefaultIPInfoFields.City},
		{&c.hostname, fields.Hostname, DefaultIPInfoFields.Hostname},
		{&c.org, fields.Org, DefaultIPInfoFields.Org},
		{&c.errMsg, ipinfoErrorQuery, ipinfoErrorQuery},
	}
	for _, q := range queries {
		src := q.src
		if strings.TrimSpace(src) == "" {
			src = q.def
		}
		code, err := compileQuery(src)
		if err != nil {
			return nil, err
		}
		*q.dst = code
	}
	return c, nil
}

func compileQuery(src string) (*gojq.Code, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing field query %q: %w", src, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compiling field query %q: %w", src, err)
	}
	return code, nil
}

// Lookup fetches the details for addr. A non-200 response is an error that
// carries the status and the service's error message, if any.
func (c *IPInfo) Lookup(ctx context.Context, addr netip.Addr) (Details, error) {
	url := fmt.Sprintf("%s/%s/json", c.baseURL, addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Details{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return Details{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Details{}, fmt.Errorf("reading response: %w", err)
	}
	var doc any
	jsonErr := json.Unmarshal(body, &doc)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if jsonErr == nil {
			if m := queryString(ctx, c.errMsg, doc); m != "" {
				msg = m
			}
		}
		return Details{}, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if jsonErr != nil {
		return Details{}, fmt.Errorf("decoding response: %w", jsonErr)
	}
	return Details{
		Country:  CountryName(queryString(ctx, c.country, doc)),
		City:     queryString(ctx, c.city, doc),
		Hostname: queryString(ctx, c.hostname, doc),
		Org:      queryString(ctx, c.org, doc),
	}, nil
}

// queryString runs code against doc and returns the first string or number
// it yields. Errors, nulls and other types yield nothing.
func queryString(ctx context.Context, code *gojq.Code, doc any) string {
	iter := code.RunWithContext(ctx, doc)
	for {
		v, ok := iter.Next()
		if !ok {
			return ""
		}
		switch v := v.(type) {
		case error:
			return ""
		case string:
			if v != "" {
				return v
			}
		case float64, int:
			return fmt.Sprint(v)
		}
	}
}

// StatusError is returned when a lookup service answers with a non-200
// status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lookup service returned HTTP %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

var regionNames = display.English.Regions()

// CountryName turns a two-letter ISO 3166 country code into its English
// name. Anything else, including codes it does not know, is returned as is.
func CountryName(code string) string {
	if len(code) != 2 || !isASCIILetter(code[0]) || !isASCIILetter(code[1]) {
		return code
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return code
	}
	if name := regionNames.Name(region); name != "" {
		return name
	}
	return code
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
