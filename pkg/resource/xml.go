package resource

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/client"
)

// scanXML walks an XML document and collects the text of every element
// whose local name is in names, in document order. Namespaces are ignored.
// It also returns the local name of the root element.
func scanXML(body []byte, names ...string) (string, map[string][]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader

	root := ""
	values := make(map[string][]string)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return root, values, fmt.Errorf("parse xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == "" {
			root = start.Name.Local
		}
		if !wanted[start.Name.Local] {
			continue
		}

		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return root, values, fmt.Errorf("parse xml element %s: %w", start.Name.Local, err)
		}
		values[start.Name.Local] = append(values[start.Name.Local], strings.TrimSpace(text))
	}

	if root == "" {
		return "", nil, fmt.Errorf("parse xml: empty document")
	}
	return root, values, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := client.Encoding(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
