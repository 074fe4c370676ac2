package application

import (
	"context"

	"github.com/ulixee/payments-sub000/internal/domain"
	"github.com/ulixee/payments-sub000/internal/ports"
)

// RecordNote records a main-ledger transfer on its own.
func (s *Service) RecordNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	return s.saveNote(ctx, note, nil)
}

// saveNote debits the sender, records the note and credits the receiver in
// one shared-store transaction, then runs inner with the committed note.
// An error from inner rolls the note back.
func (s *Service) saveNote(ctx context.Context, note domain.Note, inner func(ctx context.Context, tx ports.SharedTx, note domain.Note) error) (domain.Note, error) {
	if note.Hash == "" {
		note.Hash = note.ComputeHash()
	}
	if err := note.Validate(); err != nil {
		return domain.Note{}, err
	}
	err := s.shared.Transact(ctx, func(tx ports.SharedTx) error {
		if note.Type != domain.NoteTypeTransferIn {
			balance, err := tx.Ledger().LockBalance(ctx, note.FromAddress)
			if err != nil {
				return err
			}
			if balance < note.Centagons {
				return domain.InsufficientFunds("sender_balance_insufficient", "sender balance cannot cover this note").
					WithValues(note.Centagons, balance)
			}
		}
		if err := tx.Ledger().InsertNote(ctx, note); err != nil {
			return err
		}
		if note.Type != domain.NoteTypeTransferIn {
			if _, err := tx.Ledger().AdjustBalance(ctx, note.FromAddress, -note.Centagons); err != nil {
				return err
			}
		}
		if _, err := tx.Ledger().AdjustBalance(ctx, note.ToAddress, note.Centagons); err != nil {
			return err
		}
		if inner != nil {
			return inner(ctx, tx, note)
		}
		return nil
	})
	if err != nil {
		return domain.Note{}, err
	}
	return note, nil
}

func (s *Service) GetNote(ctx context.Context, hash string) (domain.Note, error) {
	return s.shared.Ledger().GetNote(ctx, hash)
}

func (s *Service) Balance(ctx context.Context, address string) (int64, error) {
	return s.shared.Ledger().Balance(ctx, address)
}
