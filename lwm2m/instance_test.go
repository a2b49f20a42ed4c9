package lwm2m

import (
	"slices"
	"testing"
)

func TestInstanceListOrder(t *testing.T) {
	l := NewInstanceList[string]()
	for _, id := range []uint16{5, 0, 3} {
		if !l.Add(id, "inst") {
			t.Fatalf("Add(%d) reported duplicate", id)
		}
	}
	if l.Add(3, "again") {
		t.Fatal("Add accepted duplicate ID 3")
	}
	if got, want := l.IDs(), []uint16{0, 3, 5}; !slices.Equal(got, want) {
		t.Fatalf("IDs = %v, want %v", got, want)
	}

	if _, ok := l.Remove(3); !ok {
		t.Fatal("Remove(3) found nothing")
	}
	if _, ok := l.Find(3); ok {
		t.Fatal("Find(3) after Remove")
	}
	if got, want := l.IDs(), []uint16{0, 5}; !slices.Equal(got, want) {
		t.Fatalf("IDs after Remove = %v, want %v", got, want)
	}
}

func TestInstanceListIDsIsCopy(t *testing.T) {
	l := NewInstanceList[int]()
	l.Add(1, 10)
	ids := l.IDs()
	ids[0] = 99
	if v, ok := l.Find(1); !ok || v != 10 {
		t.Fatalf("Find(1) = %v, %v after mutating IDs copy", v, ok)
	}
}

func TestInstanceListClearAndNil(t *testing.T) {
	l := NewInstanceList[int]()
	l.Add(0, 1)
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("Len after Clear = %d", l.Len())
	}

	var nilList *InstanceList[int]
	if _, ok := nilList.Find(0); ok {
		t.Fatal("nil list found an instance")
	}
	if nilList.Len() != 0 || nilList.IDs() != nil {
		t.Fatal("nil list is not empty")
	}
	nilList.Clear()
}
