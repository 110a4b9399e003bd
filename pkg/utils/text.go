package utils

import "fmt"

// TextBar renders a 10-segment progress bar for value out of total.
func TextBar(value, total int64) string {
	if total <= 0 {
		return "[□□□□□□□□□□] 0%"
	}

	percentage := int(float64(value) / float64(total) * 100)
	if percentage > 100 {
		percentage = 100
	}

	filledCount := percentage / 10
	bar := "["
	for i := 0; i < filledCount; i++ {
		bar += "■"
	}
	for i := filledCount; i < 10; i++ {
		bar += "□"
	}
	bar += fmt.Sprintf("] %d%%", percentage)

	return bar
}
