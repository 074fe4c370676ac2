package postgres

import (
	"github.com/ulixee/payments-sub000/internal/domain"
)

func toDomainBatch(row batchModel) domain.Batch {
	return domain.Batch{
		Slug:                row.Slug,
		Address:             row.Address,
		Identity:            row.Identity,
		Type:                domain.BatchType(row.Type),
		EncryptedPrivateKey: row.EncryptedPrivateKey,
		OpenedAt:            row.OpenedAt,
		PlannedClosingAt:    row.PlannedClosingAt,
		StopNewNotesAt:      row.StopNewNotesAt,
		ClosedAt:            row.ClosedAt,
		SettledAt:           row.SettledAt,
	}
}

func toDomainNote(row ledgerNoteModel) domain.Note {
	return domain.Note{
		Hash:                 row.Hash,
		FromAddress:          row.FromAddress,
		ToAddress:            row.ToAddress,
		Centagons:            row.Centagons,
		Type:                 domain.NoteType(row.Type),
		GuaranteeBlockHeight: row.GuaranteeBlockHeight,
		Timestamp:            row.Timestamp,
		Signature:            row.Signature,
	}
}

func toDomainBatchOutput(row batchOutputModel) domain.BatchOutput {
	return domain.BatchOutput{
		BatchSlug:               row.BatchSlug,
		BatchAddress:            row.BatchAddress,
		FundingMicrogons:        row.FundingMicrogons,
		AllocatedMicrogons:      row.AllocatedMicrogons,
		RevenueMicrogons:        row.RevenueMicrogons,
		SettledCentagons:        row.SettledCentagons,
		RefundCentagons:         row.RefundCentagons,
		SettlementFeeCentagons:  row.SettlementFeeCentagons,
		BurnedCentagons:         row.BurnedCentagons,
		MicronotesCount:         row.MicronotesCount,
		ClaimedMicronotesCount:  row.ClaimedMicronotesCount,
		CanceledMicronotesCount: row.CanceledMicronotesCount,
		StartBlockHeight:        row.StartBlockHeight,
		EndBlockHeight:          row.EndBlockHeight,
		CreatedAt:               row.CreatedAt,
	}
}

func toDomainFundingSource(row fundingSourceModel) domain.FundingSource {
	return domain.FundingSource{
		ID:                   row.ID,
		OwnerAddress:         row.OwnerAddress,
		BatchAddress:         row.BatchAddress,
		DepositedMicrogons:   row.DepositedMicrogons,
		AllocatedMicrogons:   row.AllocatedMicrogons,
		Origin:               domain.FundingOrigin(row.Origin),
		OriginHash:           row.OriginHash,
		GuaranteeBlockHeight: row.GuaranteeBlockHeight,
		CreatedAt:            row.CreatedAt,
	}
}

func toDomainMicronote(row micronoteModel) domain.Micronote {
	lockHolder := ""
	if row.LockHolderIdentity != nil {
		lockHolder = *row.LockHolderIdentity
	}
	return domain.Micronote{
		ID:                    row.ID,
		FundingSourceID:       row.FundsID,
		OwnerAddress:          row.OwnerAddress,
		AllocatedMicrogons:    row.AllocatedMicrogons,
		Nonce:                 row.Nonce,
		BlockHeight:           row.BlockHeight,
		IsAuditable:           row.IsAuditable,
		LockHolderIdentity:    lockHolder,
		LockAuthorizationCode: row.LockAuthorizationCode,
		HasSettlements:        row.HasSettlements,
		CreatedAt:             row.CreatedAt,
		LockedAt:              row.LockedAt,
		FinalizedAt:           row.FinalizedAt,
		CanceledAt:            row.CanceledAt,
	}
}

func toDomainHold(row holdModel) domain.MicronoteHold {
	return domain.MicronoteHold{
		MicronoteID:      row.MicronoteID,
		HoldID:           row.HoldID,
		HolderIdentity:   row.HolderIdentity,
		MicrogonsHeld:    row.MicrogonsHeld,
		MicrogonsSettled: row.MicrogonsSettled,
		HeldAt:           row.HeldAt,
		SettledAt:        row.SettledAt,
	}
}

func toDomainPayout(row payoutModel) domain.PayoutRecord {
	return domain.PayoutRecord{
		ID:                   row.ID,
		ToAddress:            row.ToAddress,
		Centagons:            row.Centagons,
		Type:                 domain.NoteType(row.Type),
		FundingSourceID:      row.FundsID,
		GuaranteeBlockHeight: row.GuaranteeBlockHeight,
		NoteHash:             row.NoteHash,
		Signature:            row.Signature,
		CreatedAt:            row.CreatedAt,
	}
}
