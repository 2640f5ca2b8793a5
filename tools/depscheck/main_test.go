package main

import (
	"strings"
	"testing"
)

func TestFindViolationsMatchesWholePathSegments(t *testing.T) {
	pkgs := []packageInfo{
		{ImportPath: modulePath + "/internal/net/ws", Imports: []string{modulePath + "/internal/physics", "fmt"}},
		{ImportPath: modulePath + "/internal/network", Imports: []string{modulePath + "/internal/physics"}},
		{ImportPath: modulePath + "/internal/sim", Imports: []string{modulePath + "/internal/physics"}},
	}
	got := findViolations(pkgs, rules)
	if len(got) != 1 {
		t.Fatalf("expected one violation, got %v", got)
	}
	if got[0] != modulePath+"/internal/net/ws -> "+modulePath+"/internal/physics" {
		t.Fatalf("unexpected violation %q", got[0])
	}
}

func TestDecodePackagesReadsConcatenatedObjects(t *testing.T) {
	input := `{"ImportPath":"a","Imports":["b"]}
{"ImportPath":"c"}`
	pkgs, err := decodePackages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodePackages: %v", err)
	}
	if len(pkgs) != 2 || pkgs[0].Imports[0] != "b" || pkgs[1].ImportPath != "c" {
		t.Fatalf("unexpected packages %+v", pkgs)
	}
	if _, err := decodePackages(strings.NewReader("{")); err == nil {
		t.Fatalf("expected truncated input to fail")
	}
}
