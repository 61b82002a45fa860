/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tokenization

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// tokenSpec is a special token declared in tokenizer_config.json. The hub
// uses either a plain string or an AddedToken object.
type tokenSpec string

func (s *tokenSpec) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = tokenSpec(plain)
		return nil
	}

	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to parse special token: %w", err)
	}
	*s = tokenSpec(obj.Content)
	return nil
}

type tokenizerConfigJSON struct {
	AddBOSToken        *bool     `json:"add_bos_token"`
	BOSToken           tokenSpec `json:"bos_token"`
	EOSToken           tokenSpec `json:"eos_token"`
	AddedTokensDecoder map[string]struct {
		Content string `json:"content"`
	} `json:"added_tokens_decoder"`
}

type tokenizerJSON struct {
	AddedTokens []struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
	Model struct {
		Vocab json.RawMessage `json:"vocab"`
	} `json:"model"`
}

// specialTokens is what parseSpecialTokens extracts from the tokenizer files.
type specialTokens struct {
	ids    SpecialIDs
	addBOS *bool
}

// parseSpecialTokens resolves the BOS/EOS ids. Token strings come from
// tokenizer_config.json (falling back to "<s>" and "</s>"); ids are looked up
// in added tokens first, then in the model vocabulary.
func parseSpecialTokens(tokenizerData, configData []byte) (specialTokens, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(tokenizerData, &tj); err != nil {
		return specialTokens{}, fmt.Errorf("failed to parse tokenizer.json: %w", err)
	}

	var cfg tokenizerConfigJSON
	if len(configData) > 0 {
		if err := json.Unmarshal(configData, &cfg); err != nil {
			return specialTokens{}, fmt.Errorf("failed to parse tokenizer_config.json: %w", err)
		}
	}

	lookup := make(map[string]int64, len(tj.AddedTokens)+len(cfg.AddedTokensDecoder))
	for id, tok := range cfg.AddedTokensDecoder {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			lookup[tok.Content] = n
		}
	}
	for _, tok := range tj.AddedTokens {
		lookup[tok.Content] = tok.ID
	}

	// BPE/WordPiece vocabularies are objects, Unigram ones are arrays
	var vocab map[string]int64
	if trimmed := bytes.TrimSpace(tj.Model.Vocab); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &vocab); err != nil {
			return specialTokens{}, fmt.Errorf("failed to parse tokenizer vocabulary: %w", err)
		}
	}

	idOf := func(tok tokenSpec, fallback string) int64 {
		name := string(tok)
		if name == "" {
			name = fallback
		}
		if id, ok := lookup[name]; ok {
			return id
		}
		if id, ok := vocab[name]; ok {
			return id
		}
		return -1
	}

	return specialTokens{
		ids: SpecialIDs{
			BOS: idOf(cfg.BOSToken, "<s>"),
			EOS: idOf(cfg.EOSToken, "</s>"),
		},
		addBOS: cfg.AddBOSToken,
	}, nil
}
