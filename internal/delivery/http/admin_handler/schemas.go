package adminHandler

import (
	"regexp"

	"beershop/internal/validation"
)

var pictureName = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(jpg|jpeg|png)$`)

var newBeerSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "name", Kind: validation.String, Required: true, Trim: true, MinLen: 2, MaxLen: 50},
		{Name: "price", Kind: validation.Number, Required: true, Positive: true, Max: validation.Float(99999999.99)},
		{Name: "picture", Kind: validation.String, MaxLen: 100, Pattern: pictureName},
		{Name: "currency", Kind: validation.String, OneOf: []string{"USD", "ILS", "EUR"}},
		{Name: "stock", Kind: validation.String, OneOf: []string{"plenty", "little", "out"}},
	},
}

// xmlBeerSchema checks the fields lifted out of an uploaded document.
var xmlBeerSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "name", Kind: validation.String, Required: true, Trim: true, MinLen: 2, MaxLen: 50},
		{Name: "price", Kind: validation.Number, Required: true, Positive: true, Max: validation.Float(99999999.99)},
	},
}

var initSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{
			Name:     "beers",
			Kind:     validation.Array,
			Required: true,
			MaxItems: 50,
			Items: &validation.Field{
				Kind: validation.Object,
				Schema: &validation.Schema{
					Strict: true,
					Fields: []validation.Field{
						{Name: "name", Kind: validation.String, Required: true, Trim: true, MaxLen: 50},
						{Name: "price", Kind: validation.Number, Required: true, Positive: true, Max: validation.Float(99999999.99)},
					},
				},
			},
		},
	},
}
