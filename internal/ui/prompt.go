package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/manifoldco/promptui"
)

// ConfirmPrompt asks a yes/no confirmation question
func ConfirmPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, fmt.Errorf("operation cancelled by user")
		}
		return false, err
	}

	return result == "y", nil
}

// SelectPrompt presents a list of options for selection
func SelectPrompt(label string, items []string) (int, string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
	}

	index, result, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return -1, "", fmt.Errorf("selection cancelled by user")
		}
		return -1, "", err
	}

	return index, result, nil
}

// MultiSelectPrompt presents a multi-select list (simulated with repeated
// selection) with fuzzy filtering
func MultiSelectPrompt(label string, items []string) ([]string, error) {
	selected := make([]string, 0)
	availableItems := make([]string, len(items)+1)
	copy(availableItems, items)
	availableItems[len(items)] = "[Done - Finish selection]"

	for {
		currentItems := make([]string, len(availableItems))
		copy(currentItems, availableItems)

		prompt := promptui.Select{
			Label: label + " (select multiple, choose 'Done' when finished)",
			Items: currentItems,
			Size:  min(10, len(currentItems)),
			Searcher: func(input string, index int) bool {
				if index < 0 || index >= len(currentItems) {
					return false
				}
				if input == "" {
					return true
				}
				return fuzzy.MatchNormalizedFold(strings.TrimSpace(input), currentItems[index])
			},
		}

		index, result, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				return nil, fmt.Errorf("selection cancelled by user")
			}
			return nil, err
		}

		if index == len(availableItems)-1 {
			break
		}

		alreadySelected := false
		for _, existing := range selected {
			if existing == result {
				alreadySelected = true
				break
			}
		}
		if !alreadySelected {
			selected = append(selected, result)
		}

		availableItems = append(availableItems[:index], availableItems[index+1:]...)

		if len(availableItems) == 1 { // Only "Done" left
			break
		}
	}

	return selected, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
