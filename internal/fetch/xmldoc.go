// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

// FragmentToMap converts an XML fragment (a sequence of sibling elements
// without a common root, as found in esummary's expxml and runs fields)
// into a nested mapping. Attributes become "@name" keys, character data
// becomes types.TextKey, and repeated child elements become []any.
func FragmentToMap(fragment string) (map[string]any, error) {
	d := xml.NewDecoder(strings.NewReader("<fragment>" + fragment + "</fragment>"))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("empty XML fragment")
			}
			return nil, fmt.Errorf("decoding XML fragment: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return decodeElement(d, start)
		}
	}
}

func decodeElement(d *xml.Decoder, start xml.StartElement) (map[string]any, error) {
	m := make(map[string]any, len(start.Attr)+1)
	for _, a := range start.Attr {
		m["@"+a.Name.Local] = a.Value
	}

	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding <%s>: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(d, t)
			if err != nil {
				return nil, err
			}
			addChild(m, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if s := strings.TrimSpace(text.String()); s != "" {
				m[types.TextKey] = s
			}
			return m, nil
		}
	}
}

func addChild(m map[string]any, name string, child map[string]any) {
	switch existing := m[name].(type) {
	case nil:
		m[name] = child
	case []any:
		m[name] = append(existing, child)
	default:
		m[name] = []any{existing, child}
	}
}
