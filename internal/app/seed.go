package app

import (
	"github.com/teralab/chatorder/internal/catalog"
	"github.com/teralab/chatorder/internal/recommend"
)

// Default storefront seed used when no catalog is configured. Prices are
// in XOF.
var defaultProducts = []catalog.Product{
	{ID: "karite-250", Name: "Shea Butter 250g", Price: 15000, Description: "Raw shea butter, 250g jar"},
	{ID: "karite-500", Name: "Shea Butter 500g", Price: 25000, Description: "Raw shea butter, 500g jar"},
	{ID: "bissap-1l", Name: "Bissap Syrup 1L", Price: 8000, Description: "Hibiscus syrup, 1 liter"},
	{ID: "baobab-oil", Name: "Baobab Oil 100ml", Price: 12000, Description: "Cold-pressed baobab oil"},
	{ID: "black-soap", Name: "Black Soap", Price: 5000, Description: "Traditional black soap bar"},
}

var defaultStock = map[string]int{
	"karite-250": 120,
	"karite-500": 60,
	"bissap-1l":  200,
	"baobab-oil": 45,
	"black-soap": 300,
}

var defaultCrossSell = map[string][]recommend.Candidate{
	"karite-250": {
		{ProductID: "baobab-oil", Name: "Baobab Oil 100ml", Reason: "pairs well for skin care", Priority: 1},
		{ProductID: "black-soap", Name: "Black Soap", Reason: "popular together", Priority: 2},
		{ProductID: "karite-500", Name: "Shea Butter 500g", Reason: "bigger size, better price", Priority: 3},
	},
	"karite-500": {
		{ProductID: "baobab-oil", Name: "Baobab Oil 100ml", Reason: "pairs well for skin care", Priority: 1},
		{ProductID: "black-soap", Name: "Black Soap", Reason: "popular together", Priority: 2},
	},
	"bissap-1l": {
		{ProductID: "black-soap", Name: "Black Soap", Reason: "frequently bought together", Priority: 2},
	},
	"baobab-oil": {
		{ProductID: "karite-250", Name: "Shea Butter 250g", Reason: "completes the routine", Priority: 1},
		{ProductID: "black-soap", Name: "Black Soap", Reason: "popular together", Priority: 2},
	},
}
