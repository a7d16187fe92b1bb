package program

const (
	CrisprName = "crispr_protocol"
	ElisaName  = "elisa_protocol"

	// Placeholder IDs until the programs are deployed; config may override them.
	CrisprPlaceholderID = "ReplaceWithCrisprProgramID"
	ElisaPlaceholderID  = "ReplaceWithElisaProgramID"
)

func NewCrisprProtocol(id string) Program {
	if id == "" {
		id = CrisprPlaceholderID
	}
	return NewGuarded(CrisprName, id)
}

func NewElisaProtocol(id string) Program {
	if id == "" {
		id = ElisaPlaceholderID
	}
	return NewGuarded(ElisaName, id)
}
