// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package strings holds small text-decoding helpers shared by the
// bytecode codec and the CLI dumper.
package strings

import (
	"golang.org/x/text/encoding/unicode"
)

// DecodeUTF16String decodes b as little-endian UTF-16, the encoding a
// handful of legacy mixin toolchains still emit member names in instead
// of the engine's native length-prefixed UTF-8 strings.
func DecodeUTF16String(b []byte) (string, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
