package intake

import "strings"

// Topic labels assigned by the keyword classifier. "civil" is the default
// bucket when nothing more specific matches.
const (
	TopicFamilia        = "familia"
	TopicConsumidor     = "consumidor"
	TopicTrabalhista    = "trabalhista"
	TopicTributario     = "tributario"
	TopicPenal          = "penal"
	TopicPrevidenciario = "previdenciario"
	TopicCivil          = "civil"
)

// topicKeywords maps each topic to its trigger terms. Matching is
// case-insensitive substring search, checked in declaration order.
var topicKeywords = []struct {
	topic string
	terms []string
}{
	{TopicFamilia, []string{
		"divórcio", "divorcio", "pensão", "pensao", "guarda", "alimentos",
		"casamento", "união estável", "uniao estavel", "partilha", "visita",
	}},
	{TopicConsumidor, []string{
		"consumidor", "produto", "defeito", "cobrança indevida", "cobranca indevida",
		"negativação", "negativacao", "serasa", "spc", "voo", "cancelamento",
		"garantia", "procon",
	}},
	{TopicTrabalhista, []string{
		"trabalho", "trabalhista", "demissão", "demissao", "demitido", "rescisão",
		"rescisao", "fgts", "hora extra", "horas extras", "salário", "salario",
		"carteira assinada", "clt", "férias", "ferias", "justa causa",
	}},
	{TopicTributario, []string{
		"imposto", "tributo", "tributário", "tributario", "fisco", "receita federal",
		"icms", "iss", "iptu", "ipva", "malha fina",
	}},
	{TopicPenal, []string{
		"crime", "penal", "prisão", "prisao", "preso", "delegacia", "flagrante",
		"boletim de ocorrência", "boletim de ocorrencia", "habeas corpus", "fiança", "fianca",
	}},
	{TopicPrevidenciario, []string{
		"inss", "aposentadoria", "aposentar", "benefício", "beneficio",
		"auxílio", "auxilio", "bpc", "loas", "perícia", "pericia",
	}},
}

// ClassifyTopic assigns a coarse legal topic to a message. The first topic
// with a matching keyword wins; unmatched messages fall into "civil".
func ClassifyTopic(text string) string {
	lowered := strings.ToLower(text)
	for _, entry := range topicKeywords {
		for _, term := range entry.terms {
			if strings.Contains(lowered, term) {
				return entry.topic
			}
		}
	}
	return TopicCivil
}
