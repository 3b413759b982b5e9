package words

import "unicode/utf8"

// Word is one vocabulary entry. Emoji and Hint are shown to players; Text is
// the Hebrew spelling they must type.
type Word struct {
	Text  string `json:"word"`
	Emoji string `json:"emoji"`
	Hint  string `json:"hint"`
}

var list = []Word{
	{Text: "בית", Emoji: "🏠", Hint: "House"},
	{Text: "כלב", Emoji: "🐕", Hint: "Dog"},
	{Text: "חתול", Emoji: "🐱", Hint: "Cat"},
	{Text: "שמש", Emoji: "☀️", Hint: "Sun"},
	{Text: "ירח", Emoji: "🌙", Hint: "Moon"},
	{Text: "עץ", Emoji: "🌳", Hint: "Tree"},
	{Text: "פרח", Emoji: "🌸", Hint: "Flower"},
	{Text: "מים", Emoji: "💧", Hint: "Water"},
	{Text: "לחם", Emoji: "🍞", Hint: "Bread"},
	{Text: "ספר", Emoji: "📚", Hint: "Book"},
	{Text: "כדור", Emoji: "⚽", Hint: "Ball"},
	{Text: "אוטו", Emoji: "🚗", Hint: "Car"},
	{Text: "דג", Emoji: "🐟", Hint: "Fish"},
	{Text: "ציפור", Emoji: "🐦", Hint: "Bird"},
	{Text: "כוכב", Emoji: "⭐", Hint: "Star"},
	{Text: "ענן", Emoji: "☁️", Hint: "Cloud"},
	{Text: "גשם", Emoji: "🌧️", Hint: "Rain"},
	{Text: "שולחן", Emoji: "🪑", Hint: "Table"},
	{Text: "כיסא", Emoji: "💺", Hint: "Chair"},
	{Text: "דלת", Emoji: "🚪", Hint: "Door"},
	{Text: "חלון", Emoji: "🪟", Hint: "Window"},
	{Text: "אש", Emoji: "🔥", Hint: "Fire"},
	{Text: "תפוח", Emoji: "🍎", Hint: "Apple"},
	{Text: "בננה", Emoji: "🍌", Hint: "Banana"},
	{Text: "גלידה", Emoji: "🍦", Hint: "Ice Cream"},
}

// Count is the number of rounds a full game plays.
func Count() int {
	return len(list)
}

// LastIndex is the index of the final word.
func LastIndex() int {
	return len(list) - 1
}

// At returns the word at i. Out-of-range indexes report false.
func At(i int) (Word, bool) {
	if i < 0 || i >= len(list) {
		return Word{}, false
	}
	return list[i], true
}

// Len is the word's length in characters, not bytes.
func (w Word) Len() int {
	return utf8.RuneCountInString(w.Text)
}

// View is what a player may see of the current word before finishing it.
type View struct {
	Index  int    `json:"index"`
	Emoji  string `json:"emoji"`
	Hint   string `json:"hint"`
	Length int    `json:"length"`
}

func (w Word) View(index int) View {
	return View{Index: index, Emoji: w.Emoji, Hint: w.Hint, Length: w.Len()}
}
