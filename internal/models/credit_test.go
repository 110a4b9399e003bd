package models

import "testing"

func TestIsCredit(t *testing.T) {
	tests := []struct {
		txType string
		want   bool
	}{
		{TxTypeAdd, true},
		{TxTypePurchase, true},
		{TxTypeSubscription, true},
		{TxTypeSubscriptionRenewal, true},
		{TxTypeDeduct, false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCredit(tt.txType); got != tt.want {
			t.Errorf("IsCredit(%q) = %v, want %v", tt.txType, got, tt.want)
		}
	}
}

func TestClassifyDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        Category
	}{
		{
			name:        "Polish message description",
			description: "Wiadomość (gpt-4o)",
			want:        CategoryMessage,
		},
		{
			name:        "Model name only",
			description: "claude-3-5-sonnet odpowiedź",
			want:        CategoryMessage,
		},
		{
			name:        "Image generation",
			description: "Obraz DALL-E (standard)",
			want:        CategoryImage,
		},
		{
			name:        "English image",
			description: "image generation",
			want:        CategoryImage,
		},
		{
			name:        "Document analysis",
			description: "Analiza dokumentu: raport.pdf",
			want:        CategoryDocument,
		},
		{
			name:        "Photo analysis",
			description: "Analiza zdjęcia",
			want:        CategoryPhoto,
		},
		{
			name:        "Unrecognized",
			description: "Kredyty powitalne",
			want:        CategoryOther,
		},
		{
			name:        "Empty",
			description: "",
			want:        CategoryOther,
		},
		{
			name:        "Case insensitive",
			description: "WIADOMOŚĆ GPT",
			want:        CategoryMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDescription(tt.description); got != tt.want {
				t.Errorf("ClassifyDescription(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestCategoryDisplayName(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryMessage, "Wiadomości"},
		{CategoryImage, "Obrazy"},
		{CategoryDocument, "Dokumenty"},
		{CategoryPhoto, "Zdjęcia"},
		{CategoryOther, "Inne"},
		{Category("legacy"), "Inne"},
	}

	for _, tt := range tests {
		if got := tt.category.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.category, got, tt.want)
		}
	}
}
