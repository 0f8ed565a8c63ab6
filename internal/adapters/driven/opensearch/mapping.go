package opensearch

// indexSettings builds the products index definition. The knn_vector field
// uses the faiss engine: lucene caps dimensions at 1024, and innerproduct
// over normalized embeddings behaves like cosine similarity.
func indexSettings(dimensions int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"index": map[string]any{
				"knn": true,
			},
			"analysis": map[string]any{
				"analyzer": map[string]any{
					"autocomplete": map[string]any{
						"type":      "custom",
						"tokenizer": "autocomplete_tokenizer",
						"filter":    []string{"lowercase"},
					},
					"autocomplete_search": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase"},
					},
				},
				"tokenizer": map[string]any{
					"autocomplete_tokenizer": map[string]any{
						"type":        "edge_ngram",
						"min_gram":    2,
						"max_gram":    20,
						"token_chars": []string{"letter", "digit"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				// Identifiers
				"supplier_aid":     map[string]any{"type": "keyword"},
				"ean":              map[string]any{"type": "keyword"},
				"manufacturer_aid": map[string]any{"type": "keyword"},

				// Catalog / provenance
				"catalog_id":  map[string]any{"type": "keyword"},
				"source_uri":  map[string]any{"type": "keyword"},
				"source_file": map[string]any{"type": "keyword"},

				// Text fields with German analyzer
				"manufacturer_name": map[string]any{
					"type":     "text",
					"analyzer": "german",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword"},
					},
				},
				"description_short": map[string]any{
					"type":     "text",
					"analyzer": "german",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword"},
						"autocomplete": map[string]any{
							"type":            "text",
							"analyzer":        "autocomplete",
							"search_analyzer": "autocomplete_search",
						},
					},
				},
				"description_long": map[string]any{"type": "text", "analyzer": "german"},

				// Numeric fields
				"delivery_time":  map[string]any{"type": "integer"},
				"order_unit":     map[string]any{"type": "keyword"},
				"price_quantity": map[string]any{"type": "integer"},
				"quantity_min":   map[string]any{"type": "integer"},

				// Classification
				"eclass_id":     map[string]any{"type": "keyword"},
				"eclass_name":   map[string]any{"type": "keyword"},
				"eclass_system": map[string]any{"type": "keyword"},

				// Pricing
				"price_amount":      map[string]any{"type": "float"},
				"price_unit_amount": map[string]any{"type": "float"},
				"price_currency":    map[string]any{"type": "keyword"},
				"price_type":        map[string]any{"type": "keyword"},
				"prices": map[string]any{
					"type": "nested",
					"properties": map[string]any{
						"price_type": map[string]any{"type": "keyword"},
						"amount":     map[string]any{"type": "float"},
						"currency":   map[string]any{"type": "keyword"},
						"tax":        map[string]any{"type": "float"},
					},
				},

				// Media
				"image": map[string]any{"type": "keyword"},
				"media": map[string]any{
					"type": "nested",
					"properties": map[string]any{
						"source":      map[string]any{"type": "keyword"},
						"type":        map[string]any{"type": "keyword"},
						"description": map[string]any{"type": "text", "index": false},
						"purpose":     map[string]any{"type": "keyword"},
					},
				},

				// Embedding for the vector branch
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dimensions,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "innerproduct",
						"engine":     "faiss",
						"parameters": map[string]any{
							"ef_construction": 128,
							"m":               16,
						},
					},
				},

				// Text used to generate the embedding. Stored for provenance,
				// never searched.
				"embedding_text": map[string]any{
					"type":  "text",
					"index": false,
				},
			},
		},
	}
}
