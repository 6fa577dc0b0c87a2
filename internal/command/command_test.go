package command

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantAlias string
		wantName  string
		wantKind  Kind
		wantArg   string
	}{
		{"implicit add", "add task one", "", "add", KindAdd, "task one"},
		{"alias prefix", "list1: add Buy milk", "list1", "add", KindAdd, "Buy milk"},
		{"alias without space", "groceries:done Eggs", "groceries", "done", KindDone, "Eggs"},
		{"command case folded", "ADD Thing", "", "add", KindAdd, "Thing"},
		{"alias case preserved", "MyList: List", "MyList", "list", KindList, ""},
		{"argument case preserved", "done Buy MILK ", "", "done", KindDone, "Buy MILK"},
		{"hyphen alias", "mock-adj-mock-noun-1234: leave", "mock-adj-mock-noun-1234", "leave", KindLeave, ""},
		{"multiline argument", "add line one\nline two", "", "add", KindAdd, "line one\nline two"},
		{"bare command", "  lists  ", "", "lists", KindLists, ""},
		{"help with topic", "help invite", "", "help", KindHelp, "invite"},
		{"unknown word", "hello", "", "hello", KindUnknown, ""},
		{"unknown with arg", "buy eggs", "", "buy", KindUnknown, "eggs"},
		{"unicode command", "Añadir leche", "", "añadir", KindUnknown, "leche"},
		{"unicode alias", "compras-café: add pan", "compras-café", "add", KindAdd, "pan"},
		{"unparseable", "!!!", "", "", KindUnknown, ""},
		{"alias only", "list1:", "", "", KindUnknown, ""},
		{"empty", "", "", "", KindEmpty, ""},
		{"blank", " \n\t ", "", "", KindEmpty, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got.Alias != tt.wantAlias {
				t.Errorf("Alias = %q, want %q", got.Alias, tt.wantAlias)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Argument != tt.wantArg {
				t.Errorf("Argument = %q, want %q", got.Argument, tt.wantArg)
			}
		})
	}
}

func TestParse_RawIsTrimmed(t *testing.T) {
	got := Parse("  !!!  ")
	if got.Raw != "!!!" {
		t.Errorf("Raw = %q, want %q", got.Raw, "!!!")
	}
}

func TestCommand_Attempt(t *testing.T) {
	if got := Parse("add Buy milk").Attempt(); got != "add Buy milk" {
		t.Errorf("Attempt() = %q", got)
	}
	if got := Parse("list").Attempt(); got != "list" {
		t.Errorf("Attempt() = %q", got)
	}
}

func TestKind_Classification(t *testing.T) {
	for _, k := range []Kind{KindCreate, KindLists, KindHelp} {
		if !k.IsGlobal() {
			t.Errorf("%v should be global", k)
		}
	}
	for _, k := range []Kind{KindAdd, KindDone, KindList, KindInvite, KindRemove, KindLeave, KindRename, KindUnknown} {
		if k.IsGlobal() {
			t.Errorf("%v should not be global", k)
		}
	}
	for _, k := range []Kind{KindInvite, KindRemove, KindLeave} {
		if !k.ModifiesMembers() {
			t.Errorf("%v should modify members", k)
		}
	}
	if KindRename.ModifiesMembers() {
		t.Error("rename should not modify members")
	}
}

func TestLookup(t *testing.T) {
	if k, ok := Lookup(" Invite "); !ok || k != KindInvite {
		t.Errorf("Lookup(Invite) = %v, %v", k, ok)
	}
	if _, ok := Lookup("delete"); ok {
		t.Error("delete is not a command")
	}
}

func TestUsage(t *testing.T) {
	if got := Usage(KindAdd); got != "Usage: add [item description]" {
		t.Errorf("Usage(add) = %q", got)
	}
}

func TestHelpIndex(t *testing.T) {
	idx := HelpIndex()
	if !strings.HasPrefix(idx, "Available commands:\nadd\ncreate\ndone\nhelp\ninvite\nleave\nlist\nlists\nremove\nrename\n") {
		t.Errorf("unexpected index ordering:\n%s", idx)
	}
	if !strings.HasSuffix(idx, "Type 'help [command]' for details.") {
		t.Errorf("missing footer:\n%s", idx)
	}
}
