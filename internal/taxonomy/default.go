package taxonomy

// Default returns the transparency checklist used when no taxonomy has been
// imported: the disclosure sections a municipal portal is expected to carry
// under Lei 12.527/2011 (LAI).
func Default() Taxonomy {
	return Taxonomy{
		{Category: "Institucional / Prefeitura", Keywords: []string{
			"organograma", "estrutura organizacional", "gestor", "endereço", "mapa",
			"telefone", "secretaria", "secretarias", "gestão municipal",
		}},
		{Category: "Gestão e Planejamento", Keywords: []string{
			"ppa", "loa", "ldo", "metas", "indicadores", "plano", "relatório de execução",
			"prestação de contas", "balanço", "relatório financeiro",
		}},
		{Category: "Orçamento e Finanças", Keywords: []string{
			"receita", "despesa", "gasto", "demonstrativo", "prestação de contas",
			"repasses", "balanço", "relatório financeiro",
		}},
		{Category: "Licitações e Contratos", Keywords: []string{
			"licitação", "edital", "resultado", "contrato", "aditivo", "convênio",
			"termo de colaboração",
		}},
		{Category: "Servidores e Remuneração", Keywords: []string{
			"servidor", "cargo", "função", "remuneração", "benefício", "gratificação",
			"concurso", "processo seletivo",
		}},
		{Category: "Atos Oficiais", Keywords: []string{
			"lei municipal", "decreto", "portaria", "resolução", "ata", "diário oficial",
			"publicação",
		}},
		{Category: "Transparência em tempo real / Dados Abertos", Keywords: []string{
			"csv", "json", "dados abertos", "gráfico interativo", "relatório automatizado",
		}},
		{Category: "Serviços ao Cidadão", Keywords: []string{
			"programa social", "curso", "evento", "vaga de emprego", "formulário",
			"ouvidoria", "denúncia",
		}},
		{Category: "Auditoria e Controle", Keywords: []string{
			"auditoria interna", "auditoria externa", "tribunal de contas", "parecer",
			"indicador de gestão",
		}},
		{Category: "Ouvidoria / Fale Conosco", Keywords: []string{
			"ouvidoria", "e-sic", "protocolo", "formulário de atendimento", "prazo de resposta",
		}},
	}
}
