package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DuplicateKeyError reports a key repeated within one YAML mapping together
// with the position of its first occurrence.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// YAML decodes the first document of a YAML stream. The document root must be
// a mapping; an empty document yields an empty map.
func YAML(data []byte) (map[string]any, error) {
	docs, err := YAMLDocuments(data)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 || docs[0] == nil {
		return map[string]any{}, nil
	}
	return docs[0], nil
}

// YAMLDocuments decodes every document of a multi-document YAML stream.
// Empty documents are returned as nil entries.
func YAMLDocuments(data []byte) ([]map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []map[string]any
	for i := 0; ; i++ {
		var root yaml.Node
		if err := dec.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, parseError("/"+strconv.Itoa(i), err)
		}
		v, err := nodeValue(&root)
		if err != nil {
			return nil, parseError("/"+strconv.Itoa(i), err)
		}
		if v == nil {
			out = append(out, nil)
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, parseError("/"+strconv.Itoa(i), fmt.Errorf("document root is %T, want a mapping", v))
		}
		out = append(out, m)
	}
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		first := make(map[string][2]int, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.ShortTag() == "!!merge" {
				merged, err := nodeValue(v)
				if err != nil {
					return nil, err
				}
				if mm, ok := merged.(map[string]any); ok {
					for mk, mv := range mm {
						if _, set := m[mk]; !set {
							m[mk] = mv
						}
					}
				}
				continue
			}
			key := k.Value
			if pos, dup := first[key]; dup {
				return nil, &DuplicateKeyError{Key: key, FirstLine: pos[0], FirstCol: pos[1], Line: k.Line, Col: k.Column}
			}
			first[key] = [2]int{k.Line, k.Column}
			val, err := nodeValue(v)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarValue(n), nil
	}
	return nil, nil
}

func scalarValue(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		// int64 keeps large identifiers intact; casting happens later
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i
		}
		var i int64
		if err := n.Decode(&i); err == nil {
			return i
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	}
	return n.Value
}
