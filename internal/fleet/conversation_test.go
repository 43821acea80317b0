package fleet

import "testing"

func TestConversationStoreAppendThenList(t *testing.T) {
	dir := t.TempDir()
	store := NewConversationStore(dir)

	if _, err := store.Append("alpha-plaza", "command_center_ui", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append("alpha-plaza", "command_center_ui", "second"); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.List("alpha-plaza")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %+v", msgs)
	}
	if msgs[0].Message != "first" || msgs[1].Message != "second" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
	if msgs[0].ID == "" || msgs[0].CreatedAt == "" {
		t.Fatalf("expected id/created_at stamped, got %+v", msgs[0])
	}
}

func TestConversationStoreListEmptyProjectReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewConversationStore(dir)

	msgs, err := store.List("never-written")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty, got %+v", msgs)
	}
}
