package shopHandler

import "beershop/internal/validation"

var searchSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "filter", Kind: validation.String, Required: true, OneOf: []string{"id", "name", "price"}},
		{Name: "query", Kind: validation.String, Required: true, MaxLen: 100},
	},
}

var beerPageSchema = validation.Schema{
	Fields: []validation.Field{
		{Name: "id", Kind: validation.String, Required: true, MaxLen: 36},
		{Name: "relationship", Kind: validation.String, MaxLen: 200},
	},
}
