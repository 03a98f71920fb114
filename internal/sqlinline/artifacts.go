package sqlinline

const QInsertArtifact = `--sql d4f7c0f7-e5b8-4777-a19e-f75558b60dd4
insert into artifacts (id, session_id, kind, storage_key, url, mime_type, width, height, dpi, source_artifact_id, properties, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::int, $8::int, $9::int, nullif($10::text, '')::uuid, coalesce($11::jsonb, '{}'::jsonb), now())
on conflict (id) do nothing;
`

const QSelectArtifactByID = `--sql 5fc0e893-e8ed-4e8c-93b8-9fa808b6ab9c
select id::text, session_id::text, kind, storage_key, url, mime_type, width, height, dpi,
       coalesce(source_artifact_id::text, ''), properties, created_at
from artifacts
where id = $1::uuid;
`

const QListArtifactsBySession = `--sql 69aadfde-7ec8-4bee-a7d4-fee390e62715
select id::text, session_id::text, kind, storage_key, url, mime_type, width, height, dpi,
       coalesce(source_artifact_id::text, ''), properties, created_at
from artifacts
where session_id = $1::uuid
order by created_at desc, id desc;
`
