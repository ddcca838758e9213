package draft

const DefaultSystemPrompt = "Sei un esperto di contratti editoriali."

const draftPrompt = `Adatta il seguente contratto di una casa editrice alla richiesta dell'utente.

**Template di riferimento:**
{template}

**Descrizione richiesta dall'utente:**
{description}

**Istruzioni importanti per l'adattamento:**
- Se nella richiesta dell'utente sono presenti dettagli come titolo dell'opera, autore, percentuale di royalty o altre informazioni specifiche, incorporali nella bozza.
- Se alcuni dati non sono forniti, lascia spazi segnaposto tra parentesi quadre, es: "[Titolo Opera]".
- Mantieni il tono e la struttura del contratto originale.

**Bozza generata:**
`
