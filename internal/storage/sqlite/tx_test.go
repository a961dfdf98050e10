package sqlite

import (
	"context"
	"testing"
)

func TestTransactionSelectsIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, isolation := range []Isolation{IsolationDeferred, IsolationImmediate, IsolationExclusive} {
		task := newTestTask(t, store, "isolation probe", 1, 1)
		err := store.Transaction(ctx, isolation, func(tx execer) error {
			_, err := tx.ExecContext(ctx, `UPDATE elements SET updated_at = updated_at WHERE id = ?`, task.ID)
			return err
		})
		if err != nil {
			t.Fatalf("Transaction(%s): %v", isolation, err)
		}
	}
}

func TestSavepointRollsBackWithoutAbortingTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outer := newTestTask(t, store, "outer survives", 1, 1)
	inner := newTestTask(t, store, "inner reverted", 1, 1)

	err := store.withTx(ctx, func(tx execer) error {
		if _, err := tx.ExecContext(ctx, `UPDATE elements SET created_by = ? WHERE id = ?`, "outer-actor", outer.ID); err != nil {
			return err
		}

		if err := savepoint(ctx, tx, "probe"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE elements SET created_by = ? WHERE id = ?`, "should-not-stick", inner.ID); err != nil {
			return err
		}
		if err := rollbackToSavepoint(ctx, tx, "probe"); err != nil {
			return err
		}
		return releaseSavepoint(ctx, tx, "probe")
	})
	if err != nil {
		t.Fatalf("withTx: %v", err)
	}

	got, err := store.GetElement(ctx, outer.ID)
	if err != nil {
		t.Fatalf("GetElement(outer): %v", err)
	}
	if got.CreatedBy != "outer-actor" {
		t.Fatalf("expected outer write to commit, got created_by=%s", got.CreatedBy)
	}

	got, err = store.GetElement(ctx, inner.ID)
	if err != nil {
		t.Fatalf("GetElement(inner): %v", err)
	}
	if got.CreatedBy == "should-not-stick" {
		t.Fatal("expected savepoint rollback to revert the inner write")
	}
}

func TestSavepointRejectsInvalidName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.withTx(ctx, func(tx execer) error {
		return savepoint(ctx, tx, "bad; name")
	})
	if err == nil {
		t.Fatal("expected an error for an invalid savepoint name")
	}
}
