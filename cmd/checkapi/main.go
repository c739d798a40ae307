// Command checkapi lints api/openapi.yaml against the error contract the
// server actually emits. Run it in CI so the published doc cannot drift from
// the handlers.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Paths      map[string]map[string]operation `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type operation struct {
	Responses map[string]yaml.Node `yaml:"responses"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Enum       []string          `yaml:"enum"`
	Items      *schema           `yaml:"items"`
}

// Every code writeError can emit must be declared in the doc's enum.
var requiredErrorCodes = []string{
	"VALIDATION",
	"UNAUTHORIZED",
	"FORBIDDEN",
	"NOT_FOUND",
	"CONFLICT",
	"RATE_LIMITED",
	"METHOD_NOT_ALLOWED",
	"AI_RESPONSE_UNPARSABLE",
	"UPSTREAM_UNAVAILABLE",
	"INTERNAL",
}

func main() {
	path := "api/openapi.yaml"
	if len(os.Args) == 2 {
		path = os.Args[1]
	} else if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [openapi.yaml]\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := loadDoc(path)
	if err != nil {
		exitErr(err)
	}
	if err := validateErrorResponse(doc); err != nil {
		exitErr(err)
	}
	if err := validateDefaultResponses(doc); err != nil {
		exitErr(err)
	}

	fmt.Println("API contract check passed.")
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func validateErrorResponse(doc openAPIDoc) error {
	if doc.Components.Schemas == nil {
		return errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas["ErrorResponse"]
	if !ok {
		return errors.New(`schema "ErrorResponse" missing`)
	}
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	errorProp, ok := s.Properties["error"]
	if !ok || errorProp.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	codeProp, ok := s.Properties["code"]
	if !ok || codeProp.Type != "string" {
		return errors.New("ErrorResponse.code must be string")
	}
	reqIDProp, ok := s.Properties["requestId"]
	if !ok || reqIDProp.Type != "string" {
		return errors.New("ErrorResponse.requestId must be string")
	}

	declared := makeSet(codeProp.Enum)
	for _, code := range requiredErrorCodes {
		if !declared[code] {
			return fmt.Errorf("ErrorResponse.code enum missing %q", code)
		}
	}
	known := makeSet(requiredErrorCodes)
	for _, code := range codeProp.Enum {
		if !known[code] {
			return fmt.Errorf("ErrorResponse.code enum declares unknown code %q", code)
		}
	}
	return nil
}

// validateDefaultResponses checks that every authenticated operation declares
// a default error response, so clients always know the failure envelope.
func validateDefaultResponses(doc openAPIDoc) error {
	if len(doc.Paths) == 0 {
		return errors.New("paths missing")
	}
	for path, ops := range doc.Paths {
		if path == "/healthz" {
			continue
		}
		for method, op := range ops {
			if _, ok := op.Responses["default"]; !ok {
				return fmt.Errorf("%s %s missing default error response", strings.ToUpper(method), path)
			}
		}
	}
	return nil
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
