package tui

// UI Text Constants
const (
	TextTitle       = "🧠 hubgraph"
	TextPlaceholder = "Loading..."

	// Footer
	TextFooterRunning = "←/→ select | 'e' expand node | 'x' stop job | 'q' detach (job keeps running)"
	TextFooterDone    = "←/→ select | 'e' expand node | 'q' quit"
)
