package domain

// Event is a single audit-relevant fact produced by a core operation.
// Operations return their events as an ordered list; the service layer hands
// them to the audit sink and the message publisher. The core itself never
// performs logging I/O.
type Event struct {
	Module   string `json:"module"`
	Action   string `json:"action"`
	EntityID string `json:"entity_id"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
	Message  string `json:"message"`
	Actor    string `json:"actor"`
}

// Modules appearing in audit entries.
const (
	ModuleStoreIndent      = "store_indent"
	ModuleCompounderIndent = "compounder_indent"
	ModuleBatch            = "batch"
	ModuleAdvisory         = "fifo_advisory"
	ModulePrescription     = "prescription"
)

// ModuleForTier maps an indent tier to its audit module name.
func ModuleForTier(t Tier) string {
	if t == TierStore {
		return ModuleStoreIndent
	}
	return ModuleCompounderIndent
}
