// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mixin

import "testing"

func TestParseMember(t *testing.T) {
	cases := []struct {
		in   string
		want Member
	}{
		{"Lcom/example/Thing;doIt(I)V", Member{Owner: "com/example/Thing", Name: "doIt", Descriptor: "(I)V"}},
		{"com.example.Thing.doIt(I)V", Member{Owner: "com/example/Thing", Name: "doIt", Descriptor: "(I)V"}},
		{"doIt(I)V", Member{Name: "doIt", Descriptor: "(I)V"}},
		{"Lcom/example/Thing;field", Member{Owner: "com/example/Thing", Name: "field"}},
		{"*", Member{Name: "*", MatchAll: true}},
	}
	for _, c := range cases {
		got, err := ParseMember(c.in)
		if err != nil {
			t.Fatalf("ParseMember(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseMember(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseMemberErrors(t *testing.T) {
	for _, in := range []string{"", "Lunterminated"} {
		if _, err := ParseMember(in); err == nil {
			t.Errorf("ParseMember(%q): expected error", in)
		}
	}
}

func TestMemberMatches(t *testing.T) {
	wildcard, _ := ParseMember("*")
	if !wildcard.Matches("any/Owner", "anything", "()V") {
		t.Error("wildcard member should match any name")
	}

	named, _ := ParseMember("Lcom/example/Thing;doIt")
	if !named.Matches("com/example/Thing", "doIt", "(I)V") {
		t.Error("descriptor-less member should match any descriptor")
	}
	if named.Matches("com/example/Other", "doIt", "(I)V") {
		t.Error("member with an owner constraint should not match a different owner")
	}
}

func TestMemberString(t *testing.T) {
	m := Member{Owner: "com/example/Thing", Name: "doIt", Descriptor: "(I)V"}
	if got, want := m.String(), "Lcom/example/Thing;doIt(I)V"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSplitDescriptor(t *testing.T) {
	params, ret, err := SplitDescriptor("(ILjava/lang/String;[I)Z")
	if err != nil {
		t.Fatalf("SplitDescriptor: %v", err)
	}
	wantParams := []string{"I", "Ljava/lang/String;", "[I"}
	if len(params) != len(wantParams) {
		t.Fatalf("params = %v, want %v", params, wantParams)
	}
	for i, p := range wantParams {
		if params[i] != p {
			t.Errorf("params[%d] = %q, want %q", i, params[i], p)
		}
	}
	if ret != "Z" {
		t.Errorf("ret = %q, want %q", ret, "Z")
	}
}

func TestSplitDescriptorInvalid(t *testing.T) {
	if _, _, err := SplitDescriptor("I)V"); err == nil {
		t.Error("expected error for descriptor missing leading '('")
	}
	if _, _, err := SplitDescriptor("(I"); err == nil {
		t.Error("expected error for unterminated descriptor")
	}
}
