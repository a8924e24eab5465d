package workflow

// Required-document labels for a DOCUMENTATION step. Selection is a
// jurisdiction lookup: the CAR service uses a fixed list, otherwise the
// registry jurisdiction code is matched exactly against the table below.
// An unknown jurisdiction yields an empty checklist and the step degrades
// to a free-text note.

var carChecklist = []string{
	"CPF / CNPJ do proprietário",
	"Matrícula ou comprovante de posse",
	"Comprovante de endereço",
	"Croqui da propriedade",
	"CAR anterior (se houver)",
}

var checklistByJurisdiction = map[string][]string{
	"uberaba": {
		"Matrícula atualizada (30 dias)",
		"CCIR",
		"ITR dos últimos 5 anos",
		"Certidão negativa de débitos",
		"Documentos pessoais do proprietário",
		"Procuração (se aplicável)",
	},
	"sacramento": {
		"Matrícula atualizada (30 dias)",
		"CCIR",
		"ITR do último exercício",
		"Documentos pessoais do proprietário",
	},
	"conceicao-das-alagoas": {
		"Matrícula atualizada (60 dias)",
		"CCIR",
		"ITR dos últimos 5 anos",
		"Certidão de ônus",
		"Documentos pessoais do proprietário",
	},
	"verissimo": {
		"Matrícula atualizada (30 dias)",
		"CCIR",
		"Documentos pessoais do proprietário",
	},
}

// ChecklistLabels resolves the required-document list for a project's
// documentation step.
func ChecklistLabels(serviceName, jurisdiction string) []string {
	if IsCARService(serviceName) {
		return carChecklist
	}
	return checklistByJurisdiction[jurisdiction]
}

// NewChecklist builds the unchecked map for a set of labels.
func NewChecklist(labels []string) Checklist {
	checklist := make(Checklist, len(labels))
	for _, label := range labels {
		checklist[label] = false
	}
	return checklist
}
