package authz

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// verbActions maps HTTP verbs to the action half of a permission code.
var verbActions = map[string]string{
	http.MethodGet:    "read",
	http.MethodPost:   "create",
	http.MethodPut:    "update",
	http.MethodDelete: "delete",
}

// Rule protects every path under Prefix. When Methods is empty and Resource is set,
// the four CRUD verbs map to "<resource>:read|create|update|delete".
type Rule struct {
	Prefix   string            `yaml:"prefix" json:"prefix"`
	Resource string            `yaml:"resource,omitempty" json:"resource,omitempty"`
	Methods  map[string]string `yaml:"methods,omitempty" json:"methods"`
}

type catalogFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules is the built-in catalog.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/api/users", Resource: "user"},
		{Prefix: "/api/roles", Resource: "role"},
		{Prefix: "/api/permissions", Resource: "permission"},
		{Prefix: "/api/sites", Resource: "site"},
		{Prefix: "/api/tags", Resource: "tag"},
		{Prefix: "/api/categories", Resource: "category"},
		{Prefix: "/api/audit-logs", Methods: map[string]string{http.MethodGet: "audit:read"}},
	}
}

// Catalog maps a request path and verb to the permission code it requires.
type Catalog struct {
	rules []Rule // longest prefix first
}

// NewCatalog normalizes and validates rules.
func NewCatalog(rules []Rule) (*Catalog, error) {
	seen := make(map[string]struct{}, len(rules))
	out := make([]Rule, 0, len(rules))

	for _, r := range rules {
		prefix := normalizePath(r.Prefix)
		if prefix == "/" {
			return nil, fmt.Errorf("authz: rule prefix %q must name a resource", r.Prefix)
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("authz: duplicate rule prefix %q", prefix)
		}
		seen[prefix] = struct{}{}

		methods := make(map[string]string)
		if len(r.Methods) == 0 && r.Resource != "" {
			for verb, action := range verbActions {
				methods[verb] = r.Resource + ":" + action
			}
		}
		for verb, code := range r.Methods {
			code = strings.TrimSpace(code)
			if code == "" {
				return nil, fmt.Errorf("authz: empty code for %s %s", verb, prefix)
			}
			methods[strings.ToUpper(verb)] = code
		}
		if len(methods) == 0 {
			return nil, fmt.Errorf("authz: rule %q has no methods", prefix)
		}
		out = append(out, Rule{Prefix: prefix, Resource: r.Resource, Methods: methods})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Prefix) != len(out[j].Prefix) {
			return len(out[i].Prefix) > len(out[j].Prefix)
		}
		return out[i].Prefix < out[j].Prefix
	})
	return &Catalog{rules: out}, nil
}

// LoadCatalog reads rules from a YAML file, or returns the defaults when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultRules())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("authz: parse catalog: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, errors.New("authz: catalog file has no rules")
	}
	return NewCatalog(file.Rules)
}

// Lookup finds the longest rule prefix covering path. A prefix covers a path when it
// equals it or is followed by "/", so "/api/users" never matches "/api/usersettings".
// protected reports a matching rule; found reports an entry for method under it.
func (c *Catalog) Lookup(path, method string) (code string, protected, found bool) {
	path = normalizePath(path)
	for _, r := range c.rules {
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			code, found = r.Methods[strings.ToUpper(method)]
			return code, true, found
		}
	}
	return "", false, false
}

// Rules returns a copy of the effective rules, longest prefix first.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Codes returns every distinct permission code the catalog can require, sorted.
func (c *Catalog) Codes() []string {
	set := make(map[string]struct{})
	for _, r := range c.rules {
		for _, code := range r.Methods {
			set[code] = struct{}{}
		}
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// MarshalYAML renders the catalog in the same shape LoadCatalog reads.
func (c *Catalog) MarshalYAML() (interface{}, error) {
	rules := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		rules = append(rules, Rule{Prefix: r.Prefix, Methods: r.Methods})
	}
	return catalogFile{Rules: rules}, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
