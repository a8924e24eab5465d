package workflow

import (
	"strings"

	"github.com/topodata/geoflow/internal/model"
)

// StepTemplate is one entry of a workflow template. Templates are static;
// steps copy kind, label and the document flag at initialization.
type StepTemplate struct {
	Kind        model.StepKind
	Label       string
	HasDocument bool
}

var standardTemplate = []StepTemplate{
	{Kind: model.StepKindBudget, Label: "Orçamento", HasDocument: true},
	{Kind: model.StepKindContract, Label: "Contrato", HasDocument: true},
	{Kind: model.StepKindServiceOrder, Label: "Ordem de Serviço", HasDocument: true},
	{Kind: model.StepKindArtCrea, Label: "ART / CREA", HasDocument: true},
	{Kind: model.StepKindDocumentation, Label: "Documentação", HasDocument: false},
	{Kind: model.StepKindSigef, Label: "Certificação SIGEF / INCRA", HasDocument: false},
	{Kind: model.StepKindConfrontants, Label: "Declaração de Confrontantes", HasDocument: true},
	{Kind: model.StepKindGeoReport, Label: "Relatório de Georreferenciamento", HasDocument: true},
	{Kind: model.StepKindCartoryReq, Label: "Requerimento ao Cartório", HasDocument: true},
	{Kind: model.StepKindCriRegistration, Label: "Registro no CRI", HasDocument: false},
	{Kind: model.StepKindPointControl, Label: "Controle de Pontos", HasDocument: false},
	{Kind: model.StepKindReceipt, Label: "Recibo", HasDocument: true},
}

var carTemplate = []StepTemplate{
	{Kind: model.StepKindBudget, Label: "Orçamento", HasDocument: true},
	{Kind: model.StepKindContract, Label: "Contrato", HasDocument: true},
	{Kind: model.StepKindServiceOrder, Label: "Ordem de Serviço", HasDocument: true},
	{Kind: model.StepKindDocumentation, Label: "Documentação", HasDocument: false},
	{Kind: model.StepKindSigef, Label: "Cadastro SICAR / SIGCAR", HasDocument: false},
	{Kind: model.StepKindReceipt, Label: "Recibo", HasDocument: true},
}

// IsCARService reports whether a service denotes the environmental
// registration variant. Matching is a case-insensitive substring on the
// service name, false positives included.
func IsCARService(serviceName string) bool {
	return strings.Contains(strings.ToUpper(serviceName), "CAR")
}

// TemplateForService returns the step template for a service: the 6-step
// CAR variant or the 12-step standard flow.
func TemplateForService(serviceName string) []StepTemplate {
	if IsCARService(serviceName) {
		return carTemplate
	}
	return standardTemplate
}
