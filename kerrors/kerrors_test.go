package kerrors

import (
	"strings"
	"testing"
)

func TestFatalfPanicsWithModuleAndStack(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Fatalf to panic")
		}
		f, ok := r.(*Fault)
		if !ok {
			t.Fatalf("recovered value is %T, want *Fault", r)
		}
		if f.Module != "frame" {
			t.Fatalf("module = %q, want %q", f.Module, "frame")
		}
		if !strings.Contains(f.Message, "double free") {
			t.Fatalf("message = %q, want it to mention double free", f.Message)
		}
		if f.Stack == "" {
			t.Fatal("expected a non-empty captured stack")
		}
		if !strings.Contains(f.Error(), f.Module) {
			t.Fatal("expected Error() to include the module name")
		}
	}()
	Fatalf("frame", "ppn %d: double free", 7)
}
