package systemHandler

import "beershop/internal/validation"

var statusSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "brand", Kind: validation.String, Required: true, MinLen: 2, MaxLen: 30, Format: validation.FormatAlnum},
	},
}

var urlSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "url", Kind: validation.String, Required: true, MaxLen: 2048},
	},
}
