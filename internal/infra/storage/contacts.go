package storage

import "context"

// SaveSelection stores the names of the teachers in the last prepared worklist.
func (s *FileStore) SaveSelection(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	return s.writeJSON(SelectionFile, names)
}

func (s *FileStore) LoadSelection(ctx context.Context) ([]string, error) {
	var names []string
	if _, err := s.readJSON(SelectionFile, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// SavePhoneOverrides stores phone numbers entered by hand, keyed by teacher.
func (s *FileStore) SavePhoneOverrides(ctx context.Context, phones map[string]string) error {
	if phones == nil {
		phones = map[string]string{}
	}
	return s.writeJSON(ContactsFile, phones)
}

func (s *FileStore) LoadPhoneOverrides(ctx context.Context) (map[string]string, error) {
	phones := map[string]string{}
	if _, err := s.readJSON(ContactsFile, &phones); err != nil {
		return nil, err
	}
	return phones, nil
}
