package service

import "fmt"

func openedText(doorName string) string {
	return fmt.Sprintf(":white_check_mark: Door *%s* opened.", doorName)
}

func openFailedText(doorName string) string {
	return fmt.Sprintf(":x: Door *%s* could not be opened. Please try again later.", doorName)
}

func expiredText(doorName string) string {
	return fmt.Sprintf(":hourglass: This request has expired. Scan your badge again to open *%s*.", doorName)
}

func reportedText(doorName string) string {
	return fmt.Sprintf(":rotating_light: The attempt at *%s* was blocked and reported.", doorName)
}

func directOpenText(doorName string, ok bool) string {
	if ok {
		return fmt.Sprintf(":white_check_mark: Door *%s* opened without confirmation, you confirmed recently.", doorName)
	}
	return openFailedText(doorName)
}
