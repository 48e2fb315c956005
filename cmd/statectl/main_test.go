package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer

	code := run([]string{"statectl", "--root", root, "set", "con_a", "x", "42"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("set failed: code=%d stderr=%s", code, errOut.String())
	}

	out.Reset()
	code = run([]string{"statectl", "--root", root, "get", "con_a", "x"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("get failed: code=%d stderr=%s", code, errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != "42" {
		t.Fatalf("got %q, want %q", got, "42")
	}
}

func TestDeleteThenGetYieldsNull(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer

	if code := run([]string{"statectl", "--root", root, "set", "con_a", "x", "42"}, &out, &errOut); code != 0 {
		t.Fatalf("set failed: %s", errOut.String())
	}
	out.Reset()
	if code := run([]string{"statectl", "--root", root, "delete", "con_a", "x"}, &out, &errOut); code != 0 {
		t.Fatalf("delete failed: %s", errOut.String())
	}
	out.Reset()
	if code := run([]string{"statectl", "--root", root, "get", "con_a", "x"}, &out, &errOut); code != 0 {
		t.Fatalf("get failed: %s", errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != "null" {
		t.Fatalf("got %q, want %q", got, "null")
	}
}

func TestApplyHardAppliesThroughTag(t *testing.T) {
	root := t.TempDir()
	var out, errOut bytes.Buffer

	code := run([]string{
		"statectl", "--root", root, "apply",
		"--delta", "T1:con_a.a=1",
		"--delta", "T2:con_a.b=2",
		"--hard-apply-through", "T1",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("apply failed: code=%d stderr=%s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "T2") {
		t.Fatalf("expected T2 to remain pending, got %q", out.String())
	}

	out.Reset()
	if code := run([]string{"statectl", "--root", root, "get", "con_a", "a"}, &out, &errOut); code != 0 {
		t.Fatalf("get failed: %s", errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != "1" {
		t.Fatalf("got %q, want %q", got, "1")
	}
}

func TestInstallAndDeleteContract(t *testing.T) {
	root := t.TempDir()
	codeFile := root + "/code.py"
	if err := os.WriteFile(codeFile, []byte("def f(): pass"), 0o600); err != nil {
		t.Fatalf("write code file: %v", err)
	}

	var out, errOut bytes.Buffer
	code := run([]string{"statectl", "--root", root, "install-contract", "con_token", codeFile, "alice", "bob"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("install-contract failed: code=%d stderr=%s", code, errOut.String())
	}

	out.Reset()
	if code := run([]string{"statectl", "--root", root, "items", "con_token."}, &out, &errOut); code != 0 {
		t.Fatalf("items failed: %s", errOut.String())
	}
	if !strings.Contains(out.String(), "__code__") {
		t.Fatalf("expected __code__ slot in items output, got %q", out.String())
	}

	out.Reset()
	if code := run([]string{"statectl", "--root", root, "delete-contract", "con_token"}, &out, &errOut); code != 0 {
		t.Fatalf("delete-contract failed: %s", errOut.String())
	}

	out.Reset()
	if code := run([]string{"statectl", "--root", root, "items", "con_token."}, &out, &errOut); code != 0 {
		t.Fatalf("items failed: %s", errOut.String())
	}
	if strings.TrimSpace(out.String()) != "" {
		t.Fatalf("expected no items after delete-contract, got %q", out.String())
	}
}
