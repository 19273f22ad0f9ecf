package authHandler

import "beershop/internal/validation"

var registerSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "name", Kind: validation.String, Required: true, Trim: true, MinLen: 2, MaxLen: 50},
		{Name: "email", Kind: validation.String, Required: true, MaxLen: 254, Format: validation.FormatEmail},
		{Name: "password", Kind: validation.String, Required: true, MinLen: 6, MaxLen: 72},
		{Name: "address", Kind: validation.String, Trim: true, MaxLen: 100},
	},
}

var loginSchema = validation.Schema{
	Strict: true,
	Fields: []validation.Field{
		{Name: "email", Kind: validation.String, Required: true, MaxLen: 254, Format: validation.FormatEmail},
		{Name: "password", Kind: validation.String, Required: true, MinLen: 6, MaxLen: 72},
	},
}
