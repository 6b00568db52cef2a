package grammar

import "testing"

func TestTokenizeNumbers(t *testing.T) {
	valid := []string{"0", "42", "1.5", ".5", "2.", "1e10", "1E-3", "1.5e+2", "0xDEADbeef"}
	for _, src := range valid {
		tokens, err := Tokenize(src)
		if err != nil {
			t.Errorf("Tokenize(%q): %v", src, err)
			continue
		}
		if len(tokens) != 1 || tokens[0].Type != TokenNumber || tokens[0].Raw != src {
			t.Errorf("Tokenize(%q) = %+v", src, tokens)
		}
	}

	malformed := []string{"1.2.3", "1.2.3x", "12abc", "1e", "1e+", "0x", "0xFG"}
	for _, src := range malformed {
		if _, err := Tokenize(src); err == nil {
			t.Errorf("Tokenize(%q): expected malformed literal error", src)
		}
	}
}

func TestTokenizeNumberInExpression(t *testing.T) {
	tokens, err := Tokenize("price >= 1.5e2 AND qty < 3")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var nums []string
	for _, tok := range tokens {
		if tok.Type == TokenNumber {
			nums = append(nums, tok.Raw)
		}
	}
	if len(nums) != 2 || nums[0] != "1.5e2" || nums[1] != "3" {
		t.Errorf("numbers = %v", nums)
	}
}
