package bioscan

// DefaultReceptors returns the reference set the registry is seeded with at startup.
func DefaultReceptors() []ReceptorEntry {
	return []ReceptorEntry{
		{Name: "Receptor ACE2", Sequence: "MSSSSWLLLSLVAVTAAQSTIEEQAKTFLDKFNHEAEDLFYQSSLASWNYNTNITEENVQNMNNAGDKWSAFLKEQSTLAQMYPLQEIQNLTVKLQLQALQQ"},
		{Name: "Receptor CD4", Sequence: "MNRGVPFRHLLLVLQLALLPAATQGKKVVLGKKGDTVELTCTASQKKSIQFHWKNSNQIKILGNQGSFLTKGPSKLNDRADSRRSLWDQGNFPLIIKNLKIED"},
		{Name: "Receptor NTCP", Sequence: "MEAHNASAPNTSDPAVGVAVVIMLMLGLLVLAIFGWNMKLLKTVLKVLPTLFLGLLVGALVLAIFGWNMKLLKTVLKVLPTLFLGLLVGALVLAIFGWNMKL"},
		{Name: "Receptor Sialic", Sequence: "MKNLLYMAALVLLALVAVADRDPGKVFGLVLLGGVILLVLAIFGWNMKLLKTVLKVLPTLFLGLLVGALVLAIFGWNMKLLKTVLKVLPTLFLGLLVGAL"},
		{Name: "Receptor CCR5", Sequence: "MDYQVSSPIYDINYYTSEPCQKINVKQIAARLLPPLYSLVFIFGFVGNMLVILILINCKRLKSMTDIYLLNLAISDLFFLLTVPFWAHYAAAQWDFGNTMCQ"},
	}
}
