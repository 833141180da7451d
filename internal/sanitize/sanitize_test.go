package sanitize_test

import (
	"testing"

	"github.com/MrWong99/echoscribe/internal/sanitize"
)

// TestSanitize_VietnameseDiacritics verifies diacritic folding including the
// standalone Đ/đ letters that generic mark stripping misses.
func TestSanitize_VietnameseDiacritics(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Giám Đốc Đức", "Giam_Doc_Duc"},
		{"Giám Đốc Đức.wav", "Giam_Doc_Duc.wav"},
		{"Nguyễn Văn An", "Nguyen_Van_An"},
		{"Trần Thị Hương", "Tran_Thi_Huong"},
		{"âêîôû", "aeiou"},
		{"áàảãạ", "aaaaa"},
		{"éèẻẽẹ", "eeeee"},
		{"íìỉĩị", "iiiii"},
		{"óòỏõọ", "ooooo"},
		{"úùủũụ", "uuuuu"},
		{"ýỳỷỹỵ", "yyyyy"},
		{"đĐ", "dD"},
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitize_SpecialCharacters verifies the allow-set, underscore
// collapsing, and trim rules.
func TestSanitize_SpecialCharacters(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"file name.wav", "file_name.wav"},
		{"file#name@test!.wav", "file_name_test.wav"},
		{"file (1).wav", "file_1.wav"},
		{"file-name_test.wav", "file-name_test.wav"},
		{"file___multiple___underscores.wav", "file_multiple_underscores.wav"},
		{"___leading_trailing___", "leading_trailing"},
		{"Lesson #1 (intro).wav", "Lesson_1_intro.wav"},
		{"A1-4.1 Talk about time and routines #test (1).wav", "A1-4.1_Talk_about_time_and_routines_test_1.wav"},
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitize_FolderPaths verifies per-component processing: the separator
// itself is never rewritten and hierarchy depth is preserved.
func TestSanitize_FolderPaths(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"folder/file.wav", "folder/file.wav"},
		{"folder/sub folder/file.wav", "folder/sub_folder/file.wav"},
		{"Giám Đốc/segments/file.wav", "Giam_Doc/segments/file.wav"},
		{"A1-4.1 Talk #test/segments/Giám Đốc (1).wav", "A1-4.1_Talk_test/segments/Giam_Doc_1.wav"},
		{"multiple/nested/folder/with spaces/file.wav", "multiple/nested/folder/with_spaces/file.wav"},
		{"//double//slashes//", "double/slashes"},
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitize_Extensions verifies that safe extensions survive verbatim and
// that stray dots in the base name are cleaned up.
func TestSanitize_Extensions(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"test.txt", "test.txt"},
		{"test.WAV", "test.WAV"},
		{"test..txt", "test.txt"},
		{"file.", "file"},
		{"file..", "file"},
		{"archive.exe", "archive.exe"}, // unknown extension: rule-processed as base, dot is allowed
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitize_TotalAndPlaceholder verifies that no non-empty component ever
// sanitises to an empty string.
func TestSanitize_TotalAndPlaceholder(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"   ", "_"},
		{"_", "_"},
		{"___", "_"},
		{"...", "_"},
		{"🎵🎵🎵", "_"},
		{"🎵emoji🎵", "emoji"},
		{"🎵🎵/file.wav", "_/file.wav"},
		{"a", "a"},
		{"ạ", "a"},
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitize_Idempotent verifies sanitize(sanitize(x)) == sanitize(x) over
// every vector used elsewhere in this file plus known troublemakers.
func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"Giám Đốc Đức.wav",
		"Lesson #1 (intro).wav",
		"folder/sub folder/file.wav",
		"A1-4.1 Talk about time and routines - Easy Vietnamese Conversation for Beginners #hoctiengviet (1)_20250814_053436/segments/segment_001_01_Giám Đốc Đức (1).wav",
		"file_._tricky",
		"🎵🎵🎵",
		"___",
		"...",
		"",
		"//double//slashes//",
	}
	for _, in := range inputs {
		once := sanitize.Sanitize(in)
		twice := sanitize.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

// TestSanitize_RealWorldPaths replays the exact object keys that motivated
// the sanitiser.
func TestSanitize_RealWorldPaths(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{
			"A1-4.1 Talk about time and routines - Easy Vietnamese Conversation for Beginners #hoctiengviet (1)_20250814_053436/segments/segment_001_01_Giám Đốc Đức (1).wav",
			"A1-4.1_Talk_about_time_and_routines_-_Easy_Vietnamese_Conversation_for_Beginners_hoctiengviet_1_20250814_053436/segments/segment_001_01_Giam_Doc_Duc_1.wav",
		},
		{"segment_001_01_Giám Đốc Đức (1).wav", "segment_001_01_Giam_Doc_Duc_1.wav"},
		{"segment_002_02_Bà Nguyễn Thị Hoa.wav", "segment_002_02_Ba_Nguyen_Thi_Hoa.wav"},
		{"segment_003_03_Ông Trần Văn Minh (giám đốc).wav", "segment_003_03_Ong_Tran_Van_Minh_giam_doc.wav"},
	}
	for _, tc := range cases {
		if got := sanitize.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestSanitizer_CustomExtensions verifies the allow-list option.
func TestSanitizer_CustomExtensions(t *testing.T) {
	s := sanitize.New(sanitize.WithExtensions([]string{"bin"}))
	if got := s.Sanitize("dump (old).bin"); got != "dump_old.bin" {
		t.Errorf("Sanitize() = %q, want %q", got, "dump_old.bin")
	}
	// wav is no longer on the list; the dot survives as an allowed base char
	// but the base is still rule-processed end to end.
	if got := s.Sanitize("tệp âm thanh.wav"); got != "tep_am_thanh.wav" {
		t.Errorf("Sanitize() = %q, want %q", got, "tep_am_thanh.wav")
	}
}
