package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Run("go source", func(t *testing.T) {
		src := `package auth

import (
	"context"
	"fmt"
)

type Session struct{}

type Store interface{}

func Login(ctx context.Context) error { return nil }

func (s *Session) Refresh() {}
`
		md := Extract("Go", src)

		assert.Equal(t, "auth", md.Package)
		assert.Equal(t, "Login, Refresh", md.Functions)
		assert.Equal(t, "Session, Store", md.Classes)
		assert.Contains(t, md.Imports, "context")
		assert.Contains(t, md.Imports, "fmt")
	})

	t.Run("python source", func(t *testing.T) {
		src := `import os
from typing import Optional

class PaymentProcessor:
    def charge(self, amount):
        pass

def main():
    pass
`
		md := Extract("Python", src)

		assert.Equal(t, "", md.Package)
		assert.Equal(t, "charge, main", md.Functions)
		assert.Equal(t, "PaymentProcessor", md.Classes)
		assert.Contains(t, md.Imports, "os")
		assert.Contains(t, md.Imports, "typing")
	})

	t.Run("javascript source", func(t *testing.T) {
		src := `const fs = require('fs');
import { api } from './api';

class Widget {}

function render(el) {}

const update = (state) => state;
`
		md := Extract("JavaScript", src)

		assert.Contains(t, md.Functions, "render")
		assert.Contains(t, md.Functions, "update")
		assert.Equal(t, "Widget", md.Classes)
		assert.Contains(t, md.Imports, "fs")
		assert.Contains(t, md.Imports, "./api")
	})

	t.Run("typescript interfaces count as classes", func(t *testing.T) {
		src := `interface User { name: string }
class UserStore {}
`
		md := Extract("TypeScript", src)
		assert.Equal(t, "User, UserStore", md.Classes)
	})

	t.Run("java source", func(t *testing.T) {
		src := `package com.example.billing;

import java.util.List;

public class Invoice {
    public void addLine(String item) {
    }
}
`
		md := Extract("Java", src)

		assert.Equal(t, "com.example.billing", md.Package)
		assert.Equal(t, "Invoice", md.Classes)
		assert.Contains(t, md.Functions, "addLine")
		assert.Equal(t, "java.util.List", md.Imports)
	})

	t.Run("unknown language yields empty set", func(t *testing.T) {
		md := Extract("Brainfuck", "+[---->+<]>+.")
		assert.True(t, md.IsEmpty())
	})

	t.Run("malformed input never panics", func(t *testing.T) {
		md := Extract("Go", "func func func ((( \x00\x01 class")
		_ = md // any result is fine as long as there is no panic
	})

	t.Run("duplicates kept as found", func(t *testing.T) {
		src := "def run():\n    pass\ndef run():\n    pass\n"
		md := Extract("Python", src)
		assert.Equal(t, "run, run", md.Functions)
	})

	t.Run("empty content", func(t *testing.T) {
		md := Extract("Go", "")
		assert.True(t, md.IsEmpty())
	})
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("Go"))
	assert.True(t, Supported("TypeScript"))
	assert.False(t, Supported("Markdown"))
}
