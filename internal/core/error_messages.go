package core

// error_messages.go maps import failures to user-facing notifications.
//
// # Notification Codes
//
// Each notification carries a code users can quote when reporting a problem.
//
//	FMT001 - Format de fichier invalide: the file is not a CSV or is empty
//	         Action: Choose a .csv file with a header line
//	         Matches: ErrInvalidFormat
//
//	READ001 - Erreur de lecture: the file content could not be read
//	          Action: Check the file and try again
//	          Matches: ErrRead
//
//	STORE001 - Échec de l'enregistrement: the imported data could not be saved
//	           Action: Please try again; the previous data is unchanged
//	           Matches: errors returned by the Persister
//
//	RATE001 - Trop de requêtes
//	          Action: Please wait a moment before trying again
//	          Matches: ErrRateLimited
//
//	ERR000 - Erreur d'importation: an unexpected error occurred
//	         Action: Please try again
//
//	OK000 - Importation réussie (success variant)
//
// Errors are matched with errors.Is in table order; the first match wins.

import (
	"errors"
	"fmt"
)

// NotificationVariant selects how a notification is styled.
type NotificationVariant string

const (
	VariantSuccess     NotificationVariant = "success"
	VariantDestructive NotificationVariant = "destructive"
)

// Notification is a transient message shown to the user after an import.
type Notification struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Action      string              `json:"action,omitempty"`
	Code        string              `json:"code"`
	Variant     NotificationVariant `json:"variant"`
}

// ErrPersist wraps failures of the Persister during an import.
var ErrPersist = errors.New("persist failed")

type notificationRule struct {
	target error
	msg    Notification
}

var notificationRules = []notificationRule{
	{
		target: ErrInvalidFormat,
		msg: Notification{
			Title:       "Format de fichier invalide",
			Description: "Veuillez importer un fichier CSV.",
			Action:      "Choisissez un fichier .csv avec une ligne d'en-tête",
			Code:        "FMT001",
			Variant:     VariantDestructive,
		},
	},
	{
		target: ErrRead,
		msg: Notification{
			Title:       "Erreur de lecture",
			Description: "Impossible de lire le fichier.",
			Action:      "Vérifiez le fichier puis réessayez",
			Code:        "READ001",
			Variant:     VariantDestructive,
		},
	},
	{
		target: ErrPersist,
		msg: Notification{
			Title:       "Échec de l'enregistrement",
			Description: "Les données importées n'ont pas pu être enregistrées.",
			Action:      "Réessayez, les données précédentes sont inchangées",
			Code:        "STORE001",
			Variant:     VariantDestructive,
		},
	},
	{
		target: ErrRateLimited,
		msg: Notification{
			Title:       "Trop de requêtes",
			Description: "Trop de requêtes ont été envoyées en peu de temps.",
			Action:      "Patientez un instant avant de réessayer",
			Code:        "RATE001",
			Variant:     VariantDestructive,
		},
	},
}

// fallbackNotification is used when no rule matches (ERR000). The technical
// error is only logged.
var fallbackNotification = Notification{
	Title:       "Erreur d'importation",
	Description: "Une erreur s'est produite lors de l'importation du fichier.",
	Action:      "Veuillez réessayer",
	Code:        "ERR000",
	Variant:     VariantDestructive,
}

// Notify converts err into a notification. A nil error yields the zero value.
func Notify(err error) Notification {
	if err == nil {
		return Notification{}
	}
	for _, rule := range notificationRules {
		if errors.Is(err, rule.target) {
			return rule.msg
		}
	}
	return fallbackNotification
}

// Success builds the notification for a completed import.
func Success(res ImportResult) Notification {
	return Notification{
		Title:       "Importation réussie",
		Description: fmt.Sprintf("%d lignes importées depuis %s. Les données ont été mises à jour avec succès.", res.Rows, res.Source),
		Code:        "OK000",
		Variant:     VariantSuccess,
	}
}

// IsUserFacing reports whether err maps to a specific notification rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && Notify(err).Code != fallbackNotification.Code
}

// FormatNotification renders n on one line: "Title: Description (Code: X)".
func FormatNotification(n Notification) string {
	if n.Title == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s (Code: %s)", n.Title, n.Description, n.Code)
}
