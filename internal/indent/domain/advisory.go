package domain

// BatchSummary is the comparison payload of the FIFO advisory.
type BatchSummary struct {
	BatchNo        string `json:"batch_no"`
	ExpiryDate     string `json:"expiry_date"`
	AvailableStock int    `json:"available_stock"`
}

// Advisory is the outcome of a FIFO batch-selection check. It never blocks:
// RequiresPrompt asks the caller to confirm issuing against a later-expiring
// batch while an earlier one still has stock.
type Advisory struct {
	RequiresPrompt bool          `json:"requires_prompt"`
	Selected       *BatchSummary `json:"selected,omitempty"`
	Earliest       *BatchSummary `json:"earliest,omitempty"`
}

const summaryDateLayout = "2006-01-02"

func summarize(b *Batch) *BatchSummary {
	return &BatchSummary{
		BatchNo:        b.BatchNo,
		ExpiryDate:     b.ExpiryDate.Format(summaryDateLayout),
		AvailableStock: b.AvailableStock,
	}
}

// CheckFIFOSelection compares the user's batch choice against the
// earliest-expiring batch that still has stock. Batches with no available
// stock never participate. When the selection already is the earliest batch
// (or no comparison is possible) the advisory passes silently.
func CheckFIFOSelection(batches []*Batch, selectedBatchNo string) Advisory {
	var earliest, selected *Batch
	for _, b := range batches {
		if b.AvailableStock <= 0 {
			continue
		}
		if earliest == nil || b.ExpiryDate.Before(earliest.ExpiryDate) {
			earliest = b
		}
		if b.BatchNo == selectedBatchNo && selected == nil {
			selected = b
		}
	}

	if earliest == nil || selected == nil || earliest.BatchNo == selectedBatchNo {
		var adv Advisory
		if selected != nil {
			adv.Selected = summarize(selected)
		}
		if earliest != nil {
			adv.Earliest = summarize(earliest)
		}
		return adv
	}

	return Advisory{
		RequiresPrompt: true,
		Selected:       summarize(selected),
		Earliest:       summarize(earliest),
	}
}
