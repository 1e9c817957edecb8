package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/setonix/internal/plugin/event"
)

var errBlankLine = errors.New("blank line")

// request is one event line.
type request struct {
	eventType string

	// structured requests carry a payload and go through RunEvent.
	structured bool
	name       string
	payload    string
	target     event.Channel

	args []any
}

// parseRequest decodes one event line.
func parseRequest(line string) (request, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return request{}, errBlankLine
	}
	if !gjson.Valid(line) {
		return request{}, errors.New("invalid JSON")
	}

	doc := gjson.Parse(line)
	typ := doc.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return request{}, errors.New(`missing string field "type"`)
	}
	req := request{eventType: typ.Str}

	if payload := doc.Get("payload"); payload.Exists() {
		if !payload.IsObject() {
			return request{}, errors.New(`"payload" must be an object`)
		}
		req.structured = true
		req.payload = payload.Raw
		req.name = doc.Get("name").String()

		target := doc.Get("target")
		if target.Exists() {
			f := target.Float()
			if target.Type != gjson.Number || f != math.Trunc(f) || f < math.MinInt16 || f > math.MaxInt16 {
				return request{}, fmt.Errorf(`"target" must be a channel number, got %s`, target.Raw)
			}
			req.target = event.Channel(f)
		}
		return req, nil
	}

	if args := doc.Get("args"); args.Exists() {
		if !args.IsArray() {
			return request{}, errors.New(`"args" must be an array`)
		}
		for _, a := range args.Array() {
			req.args = append(req.args, a.Value())
		}
	}
	return req, nil
}
