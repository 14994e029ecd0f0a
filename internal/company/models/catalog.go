package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequirementCatalog maps a tax regime to the ordered document types it requires.
// Regime order is the order in which the backend listed them.
type RequirementCatalog struct {
	regimes   []string
	documents map[string][]string
}

// NewRequirementCatalog builds a catalog from ordered regimes and their document types.
func NewRequirementCatalog(regimes []string, documents map[string][]string) *RequirementCatalog {
	c := &RequirementCatalog{documents: make(map[string][]string, len(regimes))}
	for _, regime := range regimes {
		c.add(regime, documents[regime])
	}
	return c
}

func (c *RequirementCatalog) add(regime string, types []string) {
	if _, ok := c.documents[regime]; !ok {
		c.regimes = append(c.regimes, regime)
	}
	c.documents[regime] = append([]string(nil), types...)
}

// Regimes returns the regimes in catalog order.
func (c *RequirementCatalog) Regimes() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.regimes...)
}

// DocumentTypes returns the document types required by regime and whether the regime exists.
func (c *RequirementCatalog) DocumentTypes(regime string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	types, ok := c.documents[regime]
	return append([]string(nil), types...), ok
}

// UnmarshalJSON decodes a JSON object keeping the key order.
func (c *RequirementCatalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("requirement catalog: expected object, got %v", tok)
	}

	c.regimes = nil
	c.documents = make(map[string][]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		regime, ok := tok.(string)
		if !ok {
			return fmt.Errorf("requirement catalog: unexpected key %v", tok)
		}
		var types []string
		if err := dec.Decode(&types); err != nil {
			return fmt.Errorf("requirement catalog: regime %q: %w", regime, err)
		}
		c.add(regime, types)
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the catalog as a JSON object in catalog order.
func (c *RequirementCatalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, regime := range c.regimes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(regime)
		if err != nil {
			return nil, err
		}
		types := c.documents[regime]
		if types == nil {
			types = []string{}
		}
		value, err := json.Marshal(types)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
