package classifier

import (
	"bufio"
	_ "embed" // default COCO labelmap
	"fmt"
	"os"
	"strings"
)

//go:embed coco_labels.txt
var cocoLabels string

// placeholderLabel marks unused class ids in a TFLite labelmap
const placeholderLabel = "???"

// DefaultLabels returns the COCO labelmap shipped with SSD-MobileNet detectors
func DefaultLabels() []string {
	return parseLabels(cocoLabels)
}

// LoadLabels reads a labelmap file with one label per line
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	labels := parseLabels(string(data))
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

func parseLabels(s string) []string {
	var labels []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	return labels
}

// labelFor maps a model class index to a label. Labelmaps that start with the
// placeholder are offset by one, as the model's class 0 is the first real label.
func labelFor(labels []string, class int) (string, bool) {
	if len(labels) > 0 && labels[0] == placeholderLabel {
		class++
	}
	if class < 0 || class >= len(labels) || labels[class] == placeholderLabel {
		return "", false
	}
	return labels[class], true
}
