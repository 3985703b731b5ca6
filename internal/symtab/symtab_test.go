package symtab_test

import (
	"testing"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/symtab"
)

func boolType() *ast.TypeRef  { return &ast.TypeRef{Kind: ast.TypeElementary, Elem: ast.ElemBool} }
func dwordType() *ast.TypeRef { return &ast.TypeRef{Kind: ast.TypeElementary, Elem: ast.ElemDint} }

func TestGlobalIOAddressing(t *testing.T) {
	bit := 0
	unit := &ast.Unit{
		Globals: []*ast.VarBlock{{
			Section: ast.SectionGlobal,
			Decls: []*ast.VarDecl{
				{Name: "LED_Output", Type: boolType(), IOAddr: &ast.IOAddr{Area: 'Q', Size: 'X', Index: 0, Bit: &bit}},
				{Name: "Counter", Type: dwordType()},
			},
		}},
	}
	tab := symtab.New(unit, symtab.WorkBase)
	if tab.Errors.HasErrors() {
		t.Fatalf("unexpected errors: %v", tab.Errors.Error())
	}
	led, ok := tab.LookupGlobal("LED_Output")
	if !ok {
		t.Fatal("LED_Output not found")
	}
	if led.Addr != symtab.OPIBase {
		t.Fatalf("LED_Output addr = 0x%04X, want 0x%04X", led.Addr, symtab.OPIBase)
	}
	counter, ok := tab.LookupGlobal("Counter")
	if !ok {
		t.Fatal("Counter not found")
	}
	if counter.Addr != symtab.WorkBase {
		t.Fatalf("Counter addr = 0x%04X, want 0x%04X", counter.Addr, symtab.WorkBase)
	}
}

func TestStructLayoutAlignment(t *testing.T) {
	unit := &ast.Unit{
		Structs: []*ast.StructDef{{
			Name: "Point",
			Members: []*ast.VarDecl{
				{Name: "Flag", Type: boolType()},
				{Name: "X", Type: dwordType()},
			},
		}},
	}
	tab := symtab.New(unit, symtab.WorkBase)
	sz, ok := tab.StructSize("Point")
	if !ok {
		t.Fatal("Point struct not found")
	}
	// Flag at 0 (1 byte), X aligned to 4 -> offset 4, size 4 -> total 8.
	if sz != 8 {
		t.Fatalf("Point size = %d, want 8", sz)
	}
}

func TestDuplicateGlobalIsAnError(t *testing.T) {
	unit := &ast.Unit{
		Globals: []*ast.VarBlock{{
			Decls: []*ast.VarDecl{
				{Name: "X", Type: dwordType()},
				{Name: "X", Type: dwordType()},
			},
		}},
	}
	tab := symtab.New(unit, symtab.WorkBase)
	if !tab.Errors.HasErrors() {
		t.Fatal("expected a duplicate-name error")
	}
}

func TestResolveMemberPath(t *testing.T) {
	unit := &ast.Unit{
		Structs: []*ast.StructDef{{
			Name: "Point",
			Members: []*ast.VarDecl{
				{Name: "X", Type: dwordType()},
				{Name: "Y", Type: dwordType()},
			},
		}},
	}
	tab := symtab.New(unit, symtab.WorkBase)
	named := &ast.TypeRef{Kind: ast.TypeNamed, Name: "Point"}
	mp, err := tab.ResolveMemberPath(0x2000, named, []string{"Y"})
	if err != nil {
		t.Fatal(err)
	}
	if mp.Addr != 0x2000+4 {
		t.Fatalf("Y addr = 0x%04X, want 0x%04X", mp.Addr, 0x2000+4)
	}
}

func TestLoadSuffix(t *testing.T) {
	cases := map[int]string{1: "8", 2: "16", 4: "32", 8: "64"}
	for size, want := range cases {
		if got := symtab.LoadSuffix(size); got != want {
			t.Fatalf("LoadSuffix(%d) = %s, want %s", size, got, want)
		}
	}
}
