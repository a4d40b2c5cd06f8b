package tui

import (
	"testing"

	"charm.land/bubbles/v2/key"
)

// assertNoSharedKeys fails when two bindings in one mode answer to the same key.
func assertNoSharedKeys(t *testing.T, mode string, bindings map[string]key.Binding) {
	t.Helper()
	owner := map[string]string{}
	for name, b := range bindings {
		for _, k := range b.Keys() {
			if prev, ok := owner[k]; ok {
				t.Fatalf("%s mode: key %q bound to both %s and %s", mode, k, prev, name)
			}
			owner[k] = name
		}
	}
}

// TestKeyMapNormalModeHasNoConflicts verifies board keys are unambiguous.
func TestKeyMapNormalModeHasNoConflicts(t *testing.T) {
	k := newKeyMap()
	assertNoSharedKeys(t, "normal", map[string]key.Binding{
		"quit":           k.quit,
		"toggleHelp":     k.toggleHelp,
		"moveLeft":       k.moveLeft,
		"moveRight":      k.moveRight,
		"moveUp":         k.moveUp,
		"moveDown":       k.moveDown,
		"grab":           k.grab,
		"addTask":        k.addTask,
		"taskInfo":       k.taskInfo,
		"editTask":       k.editTask,
		"deleteTask":     k.deleteTask,
		"hardDeleteTask": k.hardDeleteTask,
		"restoreTask":    k.restoreTask,
		"copyTask":       k.copyTask,
		"search":         k.search,
		"cyclePriority":  k.cyclePriority,
		"cycleDue":       k.cycleDue,
		"cycleAssignee":  k.cycleAssignee,
		"clearFilters":   k.clearFilters,
	})
}

// TestKeyMapDragModeHasNoConflicts verifies drag keys are unambiguous.
func TestKeyMapDragModeHasNoConflicts(t *testing.T) {
	k := newKeyMap()
	assertNoSharedKeys(t, "drag", map[string]key.Binding{
		"moveLeft":  k.moveLeft,
		"moveRight": k.moveRight,
		"moveUp":    k.moveUp,
		"moveDown":  k.moveDown,
		"drop":      k.drop,
		"cancel":    k.cancel,
	})
}

// TestKeyMapHelpGroups verifies every help group is populated and described.
func TestKeyMapHelpGroups(t *testing.T) {
	k := newKeyMap()
	groups := k.FullHelp()
	if len(groups) != 3 {
		t.Fatalf("expected 3 help groups, got %d", len(groups))
	}
	for i, group := range groups {
		if len(group) == 0 {
			t.Fatalf("help group %d is empty", i)
		}
		for _, b := range group {
			if b.Help().Key == "" || b.Help().Desc == "" {
				t.Fatalf("help group %d has undocumented binding %#v", i, b.Keys())
			}
		}
	}
	if len(k.ShortHelp()) == 0 || len(k.dragHelp()) == 0 {
		t.Fatal("expected short and drag help bindings")
	}
}

// TestGrabAndDropAcceptSpace verifies space both grabs and drops.
func TestGrabAndDropAcceptSpace(t *testing.T) {
	k := newKeyMap()
	if !key.Matches(keySpace, k.grab) {
		t.Fatal("expected space to grab")
	}
	if !key.Matches(keySpace, k.drop) || !key.Matches(keyEnter, k.drop) {
		t.Fatal("expected space and enter to drop")
	}
	if !key.Matches(keyEsc, k.cancel) {
		t.Fatal("expected esc to cancel")
	}
}
