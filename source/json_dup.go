package source

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/i18n"
)

type dupFrame struct {
	object       bool
	keys         map[string]struct{}
	expectingKey bool
	key          string
	index        int
	path         string
}

// DetectJSONDuplicateKeys walks data token by token and reports every key
// that repeats within one object. Paths are JSON Pointers to the repeated key.
func DetectJSONDuplicateKeys(data []byte) (cabinet.Issues, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		iss   cabinet.Issues
		stack []*dupFrame
	)
	childPath := func() string {
		if len(stack) == 0 {
			return ""
		}
		top := stack[len(stack)-1]
		if top.object {
			return top.path + "/" + escapePointer(top.key)
		}
		return top.path + "/" + strconv.Itoa(top.index)
	}
	valueDone := func() {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		if top.object {
			top.expectingKey = true
		} else {
			top.index++
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return iss, parseError("/", err)
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, &dupFrame{object: true, keys: map[string]struct{}{}, expectingKey: true, path: childPath()})
			case '[':
				stack = append(stack, &dupFrame{path: childPath()})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				valueDone()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectingKey {
				top := stack[n-1]
				if _, dup := top.keys[v]; dup {
					iss = cabinet.AppendIssues(iss, cabinet.Issue{
						Path:    top.path + "/" + escapePointer(v),
						Code:    cabinet.CodeDuplicateKey,
						Message: i18n.T(cabinet.CodeDuplicateKey, nil),
					})
				}
				top.keys[v] = struct{}{}
				top.key = v
				top.expectingKey = false
				continue
			}
			valueDone()
		default:
			valueDone()
		}
	}
	return iss, nil
}

// JSONStrict is JSON that rejects objects with repeated keys.
func JSONStrict(data []byte) (map[string]any, error) {
	iss, err := DetectJSONDuplicateKeys(data)
	if err != nil {
		return nil, err
	}
	if len(iss) > 0 {
		return nil, iss
	}
	return JSON(data)
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}
