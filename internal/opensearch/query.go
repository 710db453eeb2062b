package opensearch

import (
	"strings"
	"unicode"
)

var (
	// textSearchFields are boosted the way legal titles ("Điều 54") deserve.
	textSearchFields = []string{"title^2", "body", "section_type"}

	substringSearchFields = []string{"title", "body", "section_type"}
)

func buildTextSearchBody(query string, size int, vectorField string) map[string]interface{} {
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": textSearchFields,
				"type":   "best_fields",
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
		},
		"_source": map[string]interface{}{
			"excludes": []string{vectorField},
		},
	}
}

// substringField describes how one document field is matched by the
// substring fallback. Analyzed text fields store tokens, so the query is
// split into terms and each term must occur inside some token. WholeValue
// names an untokenised keyword sub-field that also receives the full
// query as one pattern.
type substringField struct {
	Name       string
	WholeValue string
}

func defaultSubstringFields() []substringField {
	fields := make([]substringField, len(substringSearchFields))
	for i, name := range substringSearchFields {
		fields[i] = substringField{Name: name}
	}
	return fields
}

// buildSubstringSearchBody matches query anywhere inside any of fields,
// ignoring case. Hits come back in index order.
func buildSubstringSearchBody(query string, size int, fields []substringField, vectorField string) map[string]interface{} {
	terms := substringTerms(query)

	should := make([]map[string]interface{}, 0, 2*len(fields))
	for _, field := range fields {
		if len(terms) > 0 {
			must := make([]map[string]interface{}, 0, len(terms))
			for _, term := range terms {
				must = append(must, wildcardClause(field.Name, term))
			}
			should = append(should, map[string]interface{}{
				"bool": map[string]interface{}{"must": must},
			})
		}
		if field.WholeValue != "" && strings.TrimSpace(query) != "" {
			should = append(should, wildcardClause(field.WholeValue, strings.TrimSpace(query)))
		}
	}

	var clause map[string]interface{}
	if len(should) == 0 {
		clause = map[string]interface{}{"match_none": map[string]interface{}{}}
	} else {
		clause = map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		}
	}

	return map[string]interface{}{
		"size":  size,
		"query": clause,
		"sort":  []interface{}{"_doc"},
		"_source": map[string]interface{}{
			"excludes": []string{vectorField},
		},
	}
}

func wildcardClause(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{
				"value":            "*" + escapeWildcard(value) + "*",
				"case_insensitive": true,
			},
		},
	}
}

// substringTerms splits query the way the standard analyzer does: on
// anything that is not a letter, digit or combining mark.
func substringTerms(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

func buildVectorSearchBody(vectorField string, vector []float64, k, size int) map[string]interface{} {
	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"knn": map[string]interface{}{
				vectorField: map[string]interface{}{
					"vector": vector,
					"k":      k,
				},
			},
		},
		"_source": map[string]interface{}{
			"excludes": []string{vectorField},
		},
	}
}

// buildCountBody counts documents, optionally only those carrying field.
func buildCountBody(field string) map[string]interface{} {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if field != "" {
		query = map[string]interface{}{
			"exists": map[string]interface{}{"field": field},
		}
	}
	return map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"query":            query,
	}
}

func escapeWildcard(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return replacer.Replace(value)
}
