package httpapi

func openapiSpec() map[string]any {
	pageParams := []map[string]any{
		queryParam("page", "integer"),
		queryParam("size", "integer"),
		queryParam("sortBy", "string"),
		queryParam("sortOrder", "string"),
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "mailroom",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"apiKey": map[string]any{"type": "apiKey", "in": "header", "name": "X-API-Key"},
			},
		},
		"security": []map[string]any{{"apiKey": []string{}}},
		"paths": map[string]any{
			"/companies": map[string]any{
				"get":  map[string]any{"summary": "List companies", "parameters": append(pageParams, queryParam("search", "string"))},
				"post": map[string]any{"summary": "Create company"},
			},
			"/companies/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get company"},
				"delete": map[string]any{"summary": "Delete company; unknown ids report deleted=false"},
			},
			"/companies/{id}/status": map[string]any{
				"put": map[string]any{
					"summary": "Update company annotations",
					"parameters": []map[string]any{
						queryParam("statusEmpresa", "string"),
						queryParam("situacao", "string"),
						queryParam("mensagem", "string"),
					},
				},
			},
			"/correspondences": map[string]any{
				"get":  map[string]any{"summary": "List correspondences", "parameters": append(pageParams, queryParam("status", "string"), queryParam("search", "string"))},
				"post": map[string]any{"summary": "Register correspondence (JSON, or multipart with dados and foto parts)"},
			},
			"/correspondences/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get correspondence"},
				"put":    map[string]any{"summary": "Update correspondence status and fields"},
				"delete": map[string]any{"summary": "Delete correspondence; unknown ids report deleted=false"},
			},
			"/correspondences/photos/{name}": map[string]any{
				"get": map[string]any{"summary": "Download correspondence photo or thumbnail"},
			},
			"/audit": map[string]any{
				"get": map[string]any{"summary": "Audit feed", "parameters": append(pageParams,
					queryParam("entidade", "string"), queryParam("acaoRealizada", "string"), queryParam("entidadeId", "integer"))},
			},
			"/audit/export.xlsx": map[string]any{
				"get": map[string]any{"summary": "Export audit feed as a spreadsheet"},
			},
		},
	}
}

func queryParam(name, typ string) map[string]any {
	return map[string]any{"name": name, "in": "query", "schema": map[string]any{"type": typ}}
}
