// gtest regenerates every program under testdata/ and compares the output
// against the golden files recorded next to it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/botblocks/pkg/codegen"
	"github.com/xplshn/botblocks/pkg/config"
	"github.com/xplshn/botblocks/pkg/template"
)

// Output is what one generation run produced for one language.
type Output struct {
	Source      string   `json:"source"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Hash        string   `json:"hash"`
}

// Golden maps a language name to its recorded output.
type Golden map[string]*Output

type FileTestResult struct {
	File       string        `json:"file"`
	Hash       string        `json:"hash,omitempty"`
	GoldenHash string        `json:"golden_hash,omitempty"`
	Status     string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message    string        `json:"message,omitempty"`
	Diff       string        `json:"diff,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	testFiles   = flag.String("test-files", "testdata/*.json", "Glob pattern(s) for program files to test (space-separated).")
	skipFiles   = flag.String("skip-files", "", "Files to skip (space-separated).")
	languages   = flag.String("languages", "javascript typescript python", "Languages to generate (space-separated).")
	update      = flag.Bool("update", false, "Rewrite the golden files from the current output.")
	outputJSON  = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jobs        = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose     = flag.Bool("v", false, "Enable verbose logging.")
	useCache    = flag.Bool("cached", false, "Skip files whose input and golden file are unchanged since the last passing run.")
	jsonDir     = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to the program's dir).")
	projectFile = flag.String("config", "", "TOML project file applied to every generation run.")
	genFlags    = flag.String("gen-flags", "", "Warning and feature switches for the generator, e.g. '-Wno-unattached -Fenv-token'.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	cfg := config.NewConfig()
	if *projectFile != "" {
		if err := cfg.LoadFile(*projectFile); err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
	}
	if err := cfg.ApplyFlags(strings.Fields(*genFlags)); err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}
	langs, err := parseLanguages(*languages)
	if err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files, cfg, langs, loadPreviousResults())
	printSummary(results)
	resultsMap := writeJSONReport(results)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func parseLanguages(s string) ([]config.Language, error) {
	var out []config.Language
	for _, name := range strings.Fields(s) {
		lang, err := config.ParseLanguage(name)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no languages selected")
	}
	return out, nil
}

func reportPath() string {
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, *outputJSON)
	}
	return *outputJSON
}

func loadPreviousResults() TestSuiteResults {
	previous := make(TestSuiteResults)
	data, err := os.ReadFile(reportPath())
	if err != nil {
		return previous
	}
	if json.Unmarshal(data, &previous) != nil {
		log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, reportPath())
		return make(TestSuiteResults)
	}
	return previous
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".golden.json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func runSuite(files []string, cfg *config.Config, langs []config.Language, previous TestSuiteResults) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan [2]string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(1, *jobs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				resultsChan <- testFile(task[0], task[1], cfg, langs, previous[task[0]])
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- [2]string{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*FileTestResult
	for r := range resultsChan {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

// generateAll runs the generator for every language on one program file.
func generateAll(file string, cfg *config.Config, langs []config.Language) (Golden, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.Parse(data)
	if err != nil {
		return nil, err
	}
	prog, err := template.Materialize(tmpl.Blocks)
	if err != nil {
		return nil, err
	}

	out := make(Golden, len(langs))
	gen := codegen.NewGenerator(cfg)
	for _, lang := range langs {
		res, err := gen.Generate(prog, lang)
		if err != nil {
			return nil, err
		}
		o := &Output{Source: res.Source, Hash: fmt.Sprintf("%x", res.Hash)}
		for _, d := range res.Diagnostics {
			o.Diagnostics = append(o.Diagnostics, d.String())
		}
		out[lang.String()] = o
	}
	return out, nil
}

func testFile(file, fileHash string, cfg *config.Config, langs []config.Language, prev *FileTestResult) *FileTestResult {
	start := time.Now()
	result := &FileTestResult{File: file, Hash: fileHash}
	defer func() { result.Duration = time.Since(start) }()

	goldenFile := getJSONPath(file)
	goldenHash, _ := hashFile(goldenFile)
	result.GoldenHash = goldenHash

	if *useCache && !*update && prev != nil && prev.Status == "PASS" && prev.Hash == fileHash && goldenHash != "" && prev.GoldenHash == goldenHash {
		result.Status, result.Message = "PASS", "Unchanged since last passing run (cached)"
		return result
	}

	got, err := generateAll(file, cfg, langs)
	if err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Generation failed: %v", err)
		return result
	}

	if *update {
		if err := writeGolden(goldenFile, got); err != nil {
			result.Status, result.Message = "ERROR", err.Error()
			return result
		}
		result.GoldenHash, _ = hashFile(goldenFile)
		result.Status, result.Message = "PASS", fmt.Sprintf("Golden file written to %s", goldenFile)
		return result
	}

	if goldenHash == "" {
		result.Status, result.Message = "SKIP", "Cannot test without a golden file; run with -update"
		return result
	}
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)
		return result
	}
	var want Golden
	if err := json.Unmarshal(goldenData, &want); err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)
		return result
	}

	var diffs strings.Builder
	for _, lang := range langs {
		name := lang.String()
		w, ok := want[name]
		if !ok {
			fmt.Fprintf(&diffs, "No golden output recorded for %s.\n", name)
			continue
		}
		if diff := cmp.Diff(w, got[name]); diff != "" {
			fmt.Fprintf(&diffs, "%s (-golden +generated):\n%s", name, diff)
		}
	}
	if diffs.Len() > 0 {
		result.Status, result.Message, result.Diff = "FAIL", "Generated output differs from the golden file", diffs.String()
		return result
	}
	result.Status, result.Message = "PASS", fmt.Sprintf("%d language(s) match", len(langs))
	return result
}

func writeGolden(path string, g Golden) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", path, err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		total += result.Duration

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if *verbose && result.Duration > 0 {
			fmt.Printf("  took %s\n", formatDuration(result.Duration))
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total (%s)\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), formatDuration(total))
}

// formatDiff colours the lines of a cmp diff.
func formatDiff(diff string) string {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case strings.HasPrefix(trimmed, "-"):
			sb.WriteString("    " + cRed + line + cNone + "\n")
		case strings.HasPrefix(trimmed, "+"):
			sb.WriteString("    " + cGreen + line + cNone + "\n")
		default:
			sb.WriteString("    " + line + "\n")
		}
	}
	return sb.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := reportPath()
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if strings.HasPrefix(filepath.Base(absFile), ".") {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
