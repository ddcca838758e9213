package service

import (
	"fmt"
	"strings"

	"contract-assistant/internal/model"
)

const (
	UnavailableMessage = "Non è stato possibile elaborare la richiesta. Riprova più tardi."
	paramsFilledText   = "Ho compilato i parametri richiesti."
	defaultTitlePrefix = "Nuovo contratto"

	malformedWarning = "La bozza contiene parentesi quadre non bilanciate: controlla il testo prima di procedere."
	exportWarning    = "Non è stato possibile generare il documento Word. Puoi riprovare con il download."
)

func bulletList(names []string) string {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("- *%s*", name)
	}
	return strings.Join(lines, "\n")
}

func proposalMessage(draft string, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ecco qua una proposta di bozza: \n\n%s\n\n", draft)
	if len(missing) > 0 {
		b.WriteString("\nSe vuoi **perfezionare il tuo contratto**, puoi darmi ulteriori dettagli su:\n\n")
		b.WriteString(bulletList(missing))
	}
	return b.String()
}

func updatedMessage(draft string, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ho aggiornato la bozza con i parametri forniti. Ecco il risultato:\n\n%s\n\n", draft)
	b.WriteString("\nCi sono ancora alcuni parametri da compilare:\n\n")
	b.WriteString(bulletList(missing))
	return b.String()
}

func completedMessage(draft string) string {
	return fmt.Sprintf("Ecco il contratto completo:\n\n%s\n\n", draft) + completionText
}

const completionText = "\nIl contratto è stato completato con successo! Puoi scaricarlo come documento Word."

// TemplateReference is the markdown line pointing at the selected template.
func TemplateReference(t *model.Template) string {
	if t == nil {
		return ""
	}
	if t.Link == "" {
		return fmt.Sprintf("**Template più simile trovato:** %s", t.Description)
	}
	return fmt.Sprintf("**Template più simile trovato:** [%s](%s)", t.Description, t.Link)
}

func withWarnings(content string, warnings []string) string {
	for _, w := range warnings {
		content += "\n\n> ⚠️ " + w
	}
	return content
}
